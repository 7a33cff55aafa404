package tasks

import (
	"time"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

func (s Status) Valid() bool { return s == StatusOpen || s == StatusClosed }

// Task is a stored task. DueDate is a UTC midnight.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	Status      Status
	DueDate     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// DueFilter selects a due-date window for listing.
type DueFilter string

const (
	DueToday    DueFilter = "today"
	DueThisWeek DueFilter = "this_week"
	DueWeek     DueFilter = "week"
	DueMonth    DueFilter = "month"
	DueOverdue  DueFilter = "overdue"
)

func (d DueFilter) Valid() bool {
	switch d {
	case DueToday, DueThisWeek, DueWeek, DueMonth, DueOverdue:
		return true
	}
	return false
}

// Query is a validated list request.
type Query struct {
	Status Status
	Due    DueFilter
	Search string
	Page   int
	Limit  int
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Filter is what stores evaluate. Date bounds are resolved by the service.
type Filter struct {
	UserID string
	Status Status
	// DueFrom is inclusive, DueBefore exclusive; zero means unbounded.
	DueFrom   time.Time
	DueBefore time.Time
	// OpenOnly narrows to open tasks on top of Status (overdue window).
	OpenOnly bool
	Search   string
	Limit    int
	Offset   int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Stats count all live tasks of a user regardless of list filters.
type Stats struct {
	Total   int `json:"total"`
	Open    int `json:"open"`
	Closed  int `json:"closed"`
	Overdue int `json:"overdue"`
}

// Page is one list result.
type Page struct {
	Tasks      []Task
	Pagination Pagination
	Stats      Stats
}

// Changes is a partial update. Nil fields are left untouched; Description is
// applied when SetDescription is true (nil clears it).
type Changes struct {
	Title          *string
	Description    *string
	SetDescription bool
	Status         *Status
	DueDate        *time.Time
}

// dateOf truncates t to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// window resolves a due filter against now. openOnly is set for overdue.
func window(due DueFilter, now time.Time) (from, before time.Time, openOnly bool) {
	today := dateOf(now)
	switch due {
	case DueToday:
		return today, today.AddDate(0, 0, 1), false
	case DueThisWeek, DueWeek:
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return start, start.AddDate(0, 0, 7), false
	case DueMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), false
	case DueOverdue:
		return time.Time{}, today, true
	}
	return time.Time{}, time.Time{}, false
}
