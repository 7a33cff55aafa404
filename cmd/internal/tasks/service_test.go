package tasks

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/cmd/internal/jsonapi"
)

// Wednesday; the week window runs Sun 2026-03-08 .. Sat 2026-03-14.
var testNow = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *MemoryStore, *recordingPublisher) {
	t.Helper()
	st := NewMemoryStore()
	pub := &recordingPublisher{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), st,
		WithPublisher(pub),
		WithClock(func() time.Time { return testNow }),
	)
	return svc, st, pub
}

func ptr[T any](v T) *T { return &v }

func date(s string) time.Time {
	d, ok := ParseDate(s)
	if !ok {
		panic("bad date " + s)
	}
	return d
}

// seed inserts directly, bypassing the future-date rule.
func seed(t *testing.T, st *MemoryStore, userID, title string, due string, status Status, created time.Time) Task {
	t.Helper()
	task := Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Status:    status,
		DueDate:   date(due),
		CreatedAt: created,
	}
	require.NoError(t, st.Insert(context.Background(), task))
	return task
}

func fieldMessages(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *jsonapi.ValidationError
	require.ErrorAs(t, err, &ve)
	out := map[string]string{}
	for _, f := range ve.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestCreate_DefaultsAndEvents(t *testing.T) {
	svc, _, pub := newTestService(t)
	userID := uuid.NewString()

	task, err := svc.Create(context.Background(), userID, CreateInput{
		Title:       "  Write report  ",
		Description: ptr("  quarterly  "),
		DueDate:     "2026-03-12",
	})
	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, "quarterly", *task.Description)
	assert.Equal(t, StatusOpen, task.Status)
	assert.Equal(t, date("2026-03-12"), task.DueDate)
	assert.Equal(t, testNow, task.CreatedAt)
	assert.Equal(t, []string{EventCreated}, pub.types())

	got, err := svc.Get(context.Background(), userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, pub := newTestService(t)
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'x'
	}

	cases := []struct {
		name string
		in   CreateInput
		want map[string]string
	}{
		{"past due", CreateInput{Title: "a", DueDate: "2026-03-10"}, map[string]string{"due_date": "Due date cannot be in the past"}},
		{"due today", CreateInput{Title: "a", DueDate: "2026-03-11"}, map[string]string{"due_date": "Due date cannot be in the past"}},
		{"bad date", CreateInput{Title: "a", DueDate: "03/12/2026"}, map[string]string{"due_date": "Invalid date format, expected YYYY-MM-DD"}},
		{"blank title", CreateInput{Title: "   ", DueDate: "2026-03-12"}, map[string]string{"title": "Title is required"}},
		{"long title", CreateInput{Title: string(long), DueDate: "2026-03-12"}, map[string]string{"title": "Title must be 255 characters or less"}},
		{"bad status", CreateInput{Title: "a", DueDate: "2026-03-12", Status: "done"}, map[string]string{"status": "Status must be one of: open, closed"}},
		{"several", CreateInput{DueDate: "2020-01-01"}, map[string]string{"title": "Title is required", "due_date": "Due date cannot be in the past"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), uuid.NewString(), tc.in)
			assert.Equal(t, tc.want, fieldMessages(t, err))
		})
	}
	assert.Empty(t, pub.types())
}

func TestCreate_AcceptsTimestampDueDate(t *testing.T) {
	svc, _, _ := newTestService(t)

	task, err := svc.Create(context.Background(), uuid.NewString(), CreateInput{
		Title:   "a",
		DueDate: "2026-04-01T09:30:00Z",
		Status:  "closed",
	})
	require.NoError(t, err)
	assert.Equal(t, date("2026-04-01"), task.DueDate)
	assert.Equal(t, StatusClosed, task.Status)
}

func TestReplaceAndPatch(t *testing.T) {
	svc, _, pub := newTestService(t)
	userID := uuid.NewString()

	task, err := svc.Create(context.Background(), userID, CreateInput{Title: "a", Description: ptr("d"), DueDate: "2026-03-20", Status: "closed"})
	require.NoError(t, err)

	// PUT: missing status resets to open, missing description clears it.
	replaced, err := svc.Replace(context.Background(), userID, task.ID, CreateInput{Title: "b", DueDate: "2026-03-21"})
	require.NoError(t, err)
	assert.Equal(t, "b", replaced.Title)
	assert.Nil(t, replaced.Description)
	assert.Equal(t, StatusOpen, replaced.Status)
	assert.Equal(t, date("2026-03-21"), replaced.DueDate)

	patched, err := svc.Patch(context.Background(), userID, task.ID, PatchInput{Status: ptr("closed")})
	require.NoError(t, err)
	assert.Equal(t, "b", patched.Title)
	assert.Equal(t, StatusClosed, patched.Status)
	assert.Equal(t, date("2026-03-21"), patched.DueDate)

	_, err = svc.Patch(context.Background(), userID, task.ID, PatchInput{Title: ptr(" "), DueDate: ptr("2026-01-01")})
	assert.Equal(t, map[string]string{"title": "Title is required", "due_date": "Due date cannot be in the past"}, fieldMessages(t, err))

	assert.Equal(t, []string{EventCreated, EventUpdated, EventUpdated}, pub.types())
}

func TestOwnershipAndMalformedIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := uuid.NewString()
	task, err := svc.Create(context.Background(), owner, CreateInput{Title: "a", DueDate: "2026-03-20"})
	require.NoError(t, err)

	other := uuid.NewString()
	_, err = svc.Get(context.Background(), other, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Patch(context.Background(), other, task.ID, PatchInput{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), other, task.ID), ErrNotFound)

	for _, id := range []string{"", "123", "not-a-uuid"} {
		_, err = svc.Get(context.Background(), owner, id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}

func TestDelete_IsSoft(t *testing.T) {
	svc, st, pub := newTestService(t)
	userID := uuid.NewString()
	task, err := svc.Create(context.Background(), userID, CreateInput{Title: "a", DueDate: "2026-03-20"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), userID, task.ID))

	_, err = svc.Get(context.Background(), userID, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), userID, task.ID), ErrNotFound)

	st.mu.RLock()
	row, kept := st.byID[task.ID]
	st.mu.RUnlock()
	require.True(t, kept, "row must be kept")
	require.NotNil(t, row.DeletedAt)
	assert.Equal(t, testNow, *row.DeletedAt)

	page, err := svc.List(context.Background(), userID, Query{})
	require.NoError(t, err)
	assert.Empty(t, page.Tasks)
	assert.Equal(t, Stats{}, page.Stats)
	assert.Equal(t, []string{EventCreated, EventDeleted}, pub.types())
}

func TestList_FiltersPaginationAndStats(t *testing.T) {
	svc, st, _ := newTestService(t)
	userID := uuid.NewString()
	base := testNow.Add(-time.Hour)

	seed(t, st, userID, "yesterday open", "2026-03-10", StatusOpen, base)
	seed(t, st, userID, "yesterday closed", "2026-03-10", StatusClosed, base.Add(time.Minute))
	seed(t, st, userID, "today", "2026-03-11", StatusOpen, base.Add(2*time.Minute))
	seed(t, st, userID, "saturday 100%", "2026-03-14", StatusOpen, base.Add(3*time.Minute))
	seed(t, st, userID, "next week", "2026-03-15", StatusClosed, base.Add(4*time.Minute))
	seed(t, st, userID, "april", "2026-04-02", StatusOpen, base.Add(5*time.Minute))
	seed(t, st, uuid.NewString(), "someone else", "2026-03-11", StatusOpen, base)

	titles := func(p Page) []string {
		out := make([]string, 0, len(p.Tasks))
		for _, task := range p.Tasks {
			out = append(out, task.Title)
		}
		return out
	}

	cases := []struct {
		name string
		q    Query
		want []string
	}{
		{"all in creation order", Query{}, []string{"yesterday open", "yesterday closed", "today", "saturday 100%", "next week", "april"}},
		{"today", Query{Due: DueToday}, []string{"today"}},
		{"this week", Query{Due: DueThisWeek}, []string{"yesterday open", "yesterday closed", "today", "saturday 100%"}},
		{"week alias", Query{Due: DueWeek, Status: StatusClosed}, []string{"yesterday closed"}},
		{"month", Query{Due: DueMonth}, []string{"yesterday open", "yesterday closed", "today", "saturday 100%", "next week"}},
		{"overdue", Query{Due: DueOverdue}, []string{"yesterday open"}},
		{"overdue closed is empty", Query{Due: DueOverdue, Status: StatusClosed}, []string{}},
		{"search case-insensitive", Query{Search: "YESTERDAY"}, []string{"yesterday open", "yesterday closed"}},
		{"search literal percent", Query{Search: "100%"}, []string{"saturday 100%"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := svc.List(context.Background(), userID, tc.q)
			require.NoError(t, err)
			assert.Equal(t, tc.want, titles(page))
			assert.Equal(t, Stats{Total: 6, Open: 4, Closed: 2, Overdue: 1}, page.Stats)
		})
	}

	page, err := svc.List(context.Background(), userID, Query{Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"next week", "april"}, titles(page))
	assert.Equal(t, Pagination{Page: 2, Limit: 4, Total: 6, TotalPages: 2}, page.Pagination)

	page, err = svc.List(context.Background(), userID, Query{Page: 9, Limit: 4})
	require.NoError(t, err)
	assert.Empty(t, page.Tasks)
	assert.Equal(t, 6, page.Pagination.Total)
}

func TestList_HugePageIsEmpty(t *testing.T) {
	svc, st, _ := newTestService(t)
	userID := uuid.NewString()
	seed(t, st, userID, "only", "2026-03-12", StatusOpen, testNow)

	q, err := ParseQuery(map[string][]string{"page": {"9223372036854775807"}})
	require.NoError(t, err)

	page, err := svc.List(context.Background(), userID, q)
	require.NoError(t, err)
	assert.Empty(t, page.Tasks)
	assert.Equal(t, Pagination{Page: q.Page, Limit: 10, Total: 1, TotalPages: 1}, page.Pagination)

	assert.Equal(t, math.MaxInt, pageOffset(math.MaxInt, MaxLimit))
	assert.Equal(t, 20, pageOffset(3, 10))
}

func TestMemoryStore_NegativeOffset(t *testing.T) {
	_, st, _ := newTestService(t)
	userID := uuid.NewString()
	seed(t, st, userID, "a", "2026-03-12", StatusOpen, testNow)

	items, total, err := st.List(context.Background(), Filter{UserID: userID, Limit: 10, Offset: -10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery(map[string][]string{})
	require.NoError(t, err)
	assert.Equal(t, Query{Page: 1, Limit: 10}, q)

	q, err = ParseQuery(map[string][]string{
		"status": {"closed"}, "due_date": {"week"}, "search": {"  milk "}, "page": {"3"}, "limit": {"100"}, "other": {"x"},
	})
	require.NoError(t, err)
	assert.Equal(t, Query{Status: StatusClosed, Due: DueWeek, Search: "milk", Page: 3, Limit: 100}, q)

	_, err = ParseQuery(map[string][]string{
		"status": {"done"}, "due_date": {"yesterday"}, "page": {"0"}, "limit": {"101"},
	})
	assert.Equal(t, map[string]string{
		"status":   "Status must be one of: open, closed",
		"due_date": "Due date filter must be one of: today, this_week, week, overdue, month",
		"page":     "Page must be a positive number",
		"limit":    "Limit must be between 1 and 100",
	}, fieldMessages(t, err))

	_, err = ParseQuery(map[string][]string{"page": {"abc"}, "limit": {"0"}})
	assert.Equal(t, map[string]string{
		"page":  "Page must be a positive number",
		"limit": "Limit must be between 1 and 100",
	}, fieldMessages(t, err))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_x\\`, escapeLike(`100%_x\`))
}
