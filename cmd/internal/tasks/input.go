package tasks

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskmanager/cmd/internal/jsonapi"
)

// CreateInput is the body of POST and PUT.
type CreateInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     string  `json:"due_date"`
	Status      string  `json:"status,omitempty"`
}

// PatchInput is the body of PATCH; absent members stay unchanged.
type PatchInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Status      *string `json:"status,omitempty"`
}

var taskMessages = jsonapi.Messages{
	"title.required":    "Title is required",
	"title.max":         "Title must be 255 characters or less",
	"status.oneof":      "Status must be one of: open, closed",
	"due_date.required": "Due date is required",
}

const (
	msgDueFormat = "Invalid date format, expected YYYY-MM-DD"
	msgDuePast   = "Due date cannot be in the past"
)

type validator struct {
	v *jsonapi.Validator
}

func (val validator) title(ve *jsonapi.ValidationError, raw string) string {
	t := strings.TrimSpace(raw)
	val.v.Var(ve, "title", t, "required,max=255", taskMessages)
	return t
}

func (val validator) status(ve *jsonapi.ValidationError, raw string) Status {
	s := strings.TrimSpace(raw)
	val.v.Var(ve, "status", s, "oneof=open closed", taskMessages)
	return Status(s)
}

// dueDate accepts YYYY-MM-DD or an RFC 3339 timestamp (its date part).
// The date, taken as UTC midnight, must lie after now.
func (val validator) dueDate(ve *jsonapi.ValidationError, raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if !val.v.Var(ve, "due_date", raw, "required", taskMessages) {
		return time.Time{}
	}
	d, ok := ParseDate(raw)
	if !ok {
		ve.Add("due_date", msgDueFormat)
		return time.Time{}
	}
	if !d.After(now) {
		ve.Add("due_date", msgDuePast)
		return time.Time{}
	}
	return d
}

// ParseDate parses a calendar date into its UTC midnight.
func ParseDate(raw string) (time.Time, bool) {
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func description(raw *string) *string {
	if raw == nil {
		return nil
	}
	d := strings.TrimSpace(*raw)
	if d == "" {
		return nil
	}
	return &d
}

// full validates a create/replace body into a complete change set.
func (val validator) full(in CreateInput, now time.Time) (Changes, error) {
	ve := &jsonapi.ValidationError{}

	title := val.title(ve, in.Title)
	due := val.dueDate(ve, in.DueDate, now)
	status := StatusOpen
	if strings.TrimSpace(in.Status) != "" {
		status = val.status(ve, in.Status)
	}
	if !ve.Empty() {
		return Changes{}, ve
	}
	return Changes{
		Title:          &title,
		Description:    description(in.Description),
		SetDescription: true,
		Status:         &status,
		DueDate:        &due,
	}, nil
}

func (val validator) partial(in PatchInput, now time.Time) (Changes, error) {
	ve := &jsonapi.ValidationError{}
	var ch Changes

	if in.Title != nil {
		t := val.title(ve, *in.Title)
		ch.Title = &t
	}
	if in.Description != nil {
		ch.Description = description(in.Description)
		ch.SetDescription = true
	}
	if in.DueDate != nil {
		d := val.dueDate(ve, *in.DueDate, now)
		ch.DueDate = &d
	}
	if in.Status != nil {
		s := val.status(ve, *in.Status)
		ch.Status = &s
	}
	if !ve.Empty() {
		return Changes{}, ve
	}
	return ch, nil
}

// ParseQuery validates list query parameters. Unknown parameters are ignored.
func ParseQuery(values url.Values) (Query, error) {
	ve := &jsonapi.ValidationError{}
	q := Query{Page: DefaultPage, Limit: DefaultLimit}

	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		q.Status = Status(raw)
		if !q.Status.Valid() {
			ve.Add("status", "Status must be one of: open, closed")
		}
	}
	if raw := strings.TrimSpace(values.Get("due_date")); raw != "" {
		q.Due = DueFilter(raw)
		if !q.Due.Valid() {
			ve.Add("due_date", "Due date filter must be one of: today, this_week, week, overdue, month")
		}
	}
	q.Search = strings.TrimSpace(values.Get("search"))

	if values.Has("page") {
		n, err := strconv.Atoi(strings.TrimSpace(values.Get("page")))
		if err != nil || n <= 0 {
			ve.Add("page", "Page must be a positive number")
		} else {
			q.Page = n
		}
	}
	if values.Has("limit") {
		n, err := strconv.Atoi(strings.TrimSpace(values.Get("limit")))
		if err != nil || n <= 0 || n > MaxLimit {
			ve.Add("limit", "Limit must be between 1 and 100")
		} else {
			q.Limit = n
		}
	}

	if !ve.Empty() {
		return Query{}, ve
	}
	return q, nil
}
