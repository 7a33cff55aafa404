package realtime

import (
	"log/slog"
	"sync"

	"taskmanager/cmd/internal/tasks"
)

// ConnGauge observes the number of open connections (metrics).
type ConnGauge interface {
	Inc()
	Dec()
}

type noopGauge struct{}

func (noopGauge) Inc() {}
func (noopGauge) Dec() {}

// Hub keeps one feed per user and fans task events out to it.
//
// Join/Leave are safe under concurrent Publish, and Publish never blocks:
// a full client queue drops the event.
type Hub struct {
	log   *slog.Logger
	gauge ConnGauge

	mu    sync.RWMutex
	feeds map[string]map[string]*Client
}

func NewHub(log *slog.Logger, gauge ConnGauge) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if gauge == nil {
		gauge = noopGauge{}
	}
	return &Hub{
		log:   log,
		gauge: gauge,
		feeds: make(map[string]map[string]*Client),
	}
}

func (h *Hub) Join(c *Client) {
	if c == nil || c.UserID == "" || c.ConnID == "" {
		return
	}

	h.mu.Lock()
	feed, ok := h.feeds[c.UserID]
	if !ok {
		feed = make(map[string]*Client)
		h.feeds[c.UserID] = feed
	}
	feed[c.ConnID] = c
	h.mu.Unlock()

	h.gauge.Inc()
	h.log.Info("ws.feed.join", "user_id", c.UserID, "conn_id", c.ConnID)
}

// Leave removes c from its feed, then closes it.
func (h *Hub) Leave(c *Client) {
	if c == nil {
		return
	}

	removed := false
	h.mu.Lock()
	if feed, ok := h.feeds[c.UserID]; ok {
		if _, ok := feed[c.ConnID]; ok {
			delete(feed, c.ConnID)
			removed = true
		}
		if len(feed) == 0 {
			delete(h.feeds, c.UserID)
		}
	}
	h.mu.Unlock()

	// Removal precedes Close so a publisher never holds a closing client.
	c.Close()
	if removed {
		h.gauge.Dec()
		h.log.Info("ws.feed.leave", "user_id", c.UserID, "conn_id", c.ConnID)
	}
}

// Publish implements tasks.Publisher.
func (h *Hub) Publish(ev tasks.Event) {
	if ev.UserID == "" {
		return
	}
	env := taskEnvelope(ev)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.feeds[ev.UserID] {
		if !c.offer(env) {
			h.log.Debug("ws.publish.drop", "user_id", ev.UserID, "conn_id", c.ConnID, "type", ev.Type)
		}
	}
}

// Connections returns the number of open connections of userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.feeds[userID])
}
