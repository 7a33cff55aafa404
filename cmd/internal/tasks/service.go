package tasks

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"taskmanager/cmd/internal/jsonapi"
)

// Event types published after successful writes.
const (
	EventCreated = "task.created"
	EventUpdated = "task.updated"
	EventDeleted = "task.deleted"
)

// Event describes one committed change. Task is nil for deletions.
type Event struct {
	Type   string
	UserID string
	TaskID string
	Task   *Task
	At     time.Time
}

// Publisher fans task events out to the owner's live connections.
// Publish must not block.
type Publisher interface {
	Publish(ev Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Service applies validation and ownership rules on top of a Store.
type Service struct {
	log       *slog.Logger
	store     Store
	publisher Publisher
	val       validator
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(log *slog.Logger, store Store, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:       log,
		store:     store,
		publisher: noopPublisher{},
		val:       validator{v: jsonapi.NewValidator()},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Task, error) {
	now := s.now()
	ch, err := s.val.full(in, now)
	if err != nil {
		return Task{}, err
	}

	t := Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       *ch.Title,
		Description: ch.Description,
		Status:      *ch.Status,
		DueDate:     *ch.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return Task{}, err
	}
	s.publish(EventCreated, userID, t.ID, &t, now)
	return t, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (Task, error) {
	id, ok := canonicalID(id)
	if !ok {
		return Task{}, ErrNotFound
	}
	return s.store.Get(ctx, userID, id)
}

// Replace overwrites every field with create semantics.
func (s *Service) Replace(ctx context.Context, userID, id string, in CreateInput) (Task, error) {
	now := s.now()
	ch, err := s.val.full(in, now)
	if err != nil {
		return Task{}, err
	}
	return s.update(ctx, userID, id, ch, now)
}

func (s *Service) Patch(ctx context.Context, userID, id string, in PatchInput) (Task, error) {
	now := s.now()
	ch, err := s.val.partial(in, now)
	if err != nil {
		return Task{}, err
	}
	return s.update(ctx, userID, id, ch, now)
}

func (s *Service) update(ctx context.Context, userID, id string, ch Changes, now time.Time) (Task, error) {
	id, ok := canonicalID(id)
	if !ok {
		return Task{}, ErrNotFound
	}
	t, err := s.store.Update(ctx, userID, id, ch, now)
	if err != nil {
		return Task{}, err
	}
	s.publish(EventUpdated, userID, t.ID, &t, now)
	return t, nil
}

// Delete soft-deletes the task; the row is kept.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	id, ok := canonicalID(id)
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	if err := s.store.SoftDelete(ctx, userID, id, now); err != nil {
		return err
	}
	s.publish(EventDeleted, userID, id, nil, now)
	return nil
}

// List returns one filtered page plus unfiltered stats.
func (s *Service) List(ctx context.Context, userID string, q Query) (Page, error) {
	if q.Page <= 0 {
		q.Page = DefaultPage
	}
	if q.Limit <= 0 || q.Limit > MaxLimit {
		q.Limit = DefaultLimit
	}

	now := s.now()
	f := Filter{
		UserID: userID,
		Status: q.Status,
		Search: q.Search,
		Limit:  q.Limit,
		Offset: pageOffset(q.Page, q.Limit),
	}
	if q.Due != "" {
		f.DueFrom, f.DueBefore, f.OpenOnly = window(q.Due, now)
	}

	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	stats, err := s.store.Stats(ctx, userID, dateOf(now))
	if err != nil {
		return Page{}, err
	}

	return Page{
		Tasks: items,
		Pagination: Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: (total + q.Limit - 1) / q.Limit,
		},
		Stats: stats,
	}, nil
}

// pageOffset saturates at math.MaxInt so an absurd page is just an empty one.
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func (s *Service) publish(typ, userID, id string, t *Task, at time.Time) {
	s.publisher.Publish(Event{Type: typ, UserID: userID, TaskID: id, Task: t, At: at})
}

// canonicalID maps any accepted uuid spelling to the stored form.
// Anything else can never name a task.
func canonicalID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
