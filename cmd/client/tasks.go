package client

import (
	"net/url"
	"strconv"
	"time"
)

// Task is the client view of a task resource.
type Task struct {
	ID          string
	Title       string
	Description *string
	Status      string
	DueDate     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type taskResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Title       string    `json:"title"`
		Description *string   `json:"description"`
		Status      string    `json:"status"`
		DueDate     string    `json:"dueDate"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	} `json:"attributes"`
}

func (r taskResource) task() Task {
	return Task{
		ID:          r.ID,
		Title:       r.Attributes.Title,
		Description: r.Attributes.Description,
		Status:      r.Attributes.Status,
		DueDate:     r.Attributes.DueDate,
		CreatedAt:   r.Attributes.CreatedAt,
		UpdatedAt:   r.Attributes.UpdatedAt,
	}
}

// TaskInput is the create/replace payload. DueDate is YYYY-MM-DD.
type TaskInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     string  `json:"due_date"`
	Status      string  `json:"status,omitempty"`
}

// TaskPatch sends only non-nil fields.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// TaskQuery filters ListTasks; zero values are omitted.
type TaskQuery struct {
	Status  string
	DueDate string
	Search  string
	Page    int
	Limit   int
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.DueDate != "" {
		v.Set("due_date", q.DueDate)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Stats struct {
	Total   int `json:"total"`
	Open    int `json:"open"`
	Closed  int `json:"closed"`
	Overdue int `json:"overdue"`
}

// TaskList is one page plus the user's overall stats.
type TaskList struct {
	Tasks      []Task
	Pagination Pagination
	Stats      Stats
}

type taskDocument struct {
	Data taskResource `json:"data"`
}

type taskListDocument struct {
	Data []taskResource `json:"data"`
	Meta struct {
		Pagination Pagination `json:"pagination"`
		Stats      Stats      `json:"stats"`
	} `json:"meta"`
}
