package tasks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*memTask
	seq  uint64
}

type memTask struct {
	Task
	seq uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*memTask)}
}

func (m *MemoryStore) Insert(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t.UpdatedAt = t.CreatedAt
	m.byID[t.ID] = &memTask{Task: cloneTask(t), seq: m.seq}
	return nil
}

// live returns the owner's non-deleted task. Callers hold the lock.
func (m *MemoryStore) live(userID, id string) (*memTask, bool) {
	t, ok := m.byID[id]
	if !ok || t.UserID != userID || t.DeletedAt != nil {
		return nil, false
	}
	return t, true
}

func (m *MemoryStore) Get(ctx context.Context, userID, id string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.live(userID, id)
	if !ok {
		return Task{}, ErrNotFound
	}
	return cloneTask(t.Task), nil
}

func (m *MemoryStore) Update(ctx context.Context, userID, id string, ch Changes, now time.Time) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.live(userID, id)
	if !ok {
		return Task{}, ErrNotFound
	}
	if ch.Title != nil {
		t.Title = *ch.Title
	}
	if ch.SetDescription {
		t.Description = cloneString(ch.Description)
	}
	if ch.Status != nil {
		t.Status = *ch.Status
	}
	if ch.DueDate != nil {
		t.DueDate = *ch.DueDate
	}
	t.UpdatedAt = now
	return cloneTask(t.Task), nil
}

func (m *MemoryStore) SoftDelete(ctx context.Context, userID, id string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.live(userID, id)
	if !ok {
		return ErrNotFound
	}
	at := now
	t.DeletedAt = &at
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f Filter) ([]Task, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	matched := make([]*memTask, 0)
	for _, t := range m.byID {
		if t.UserID == f.UserID && t.DeletedAt == nil && matches(t.Task, f) {
			matched = append(matched, t)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.seq < b.seq
	})

	total := len(matched)
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Offset >= total {
		return []Task{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	out := make([]Task, 0, end-f.Offset)
	for _, t := range matched[f.Offset:end] {
		out = append(out, cloneTask(t.Task))
	}
	return out, total, nil
}

func matches(t Task, f Filter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.OpenOnly && t.Status != StatusOpen {
		return false
	}
	if !f.DueFrom.IsZero() && t.DueDate.Before(f.DueFrom) {
		return false
	}
	if !f.DueBefore.IsZero() && !t.DueDate.Before(f.DueBefore) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		inTitle := strings.Contains(strings.ToLower(t.Title), q)
		inDesc := t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
		if !inTitle && !inDesc {
			return false
		}
	}
	return true
}

func (m *MemoryStore) Stats(ctx context.Context, userID string, today time.Time) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st Stats
	for _, t := range m.byID {
		if t.UserID != userID || t.DeletedAt != nil {
			continue
		}
		st.Total++
		switch t.Status {
		case StatusOpen:
			st.Open++
			if t.DueDate.Before(today) {
				st.Overdue++
			}
		case StatusClosed:
			st.Closed++
		}
	}
	return st, nil
}

func cloneTask(t Task) Task {
	t.Description = cloneString(t.Description)
	if t.DeletedAt != nil {
		d := *t.DeletedAt
		t.DeletedAt = &d
	}
	return t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
