package tasks

import "time"

// Resource is the JSON:API representation of a task.
type Resource struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Attributes Attributes `json:"attributes"`
}

type Attributes struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      Status    `json:"status"`
	DueDate     string    `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func Serialize(t Task) Resource {
	return Resource{
		ID:   t.ID,
		Type: "tasks",
		Attributes: Attributes{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			DueDate:     t.DueDate.UTC().Format(time.DateOnly),
			CreatedAt:   t.CreatedAt.UTC(),
			UpdatedAt:   t.UpdatedAt.UTC(),
		},
	}
}

func SerializeAll(ts []Task) []Resource {
	out := make([]Resource, 0, len(ts))
	for _, t := range ts {
		out = append(out, Serialize(t))
	}
	return out
}

type document struct {
	Data any `json:"data"`
}

type listMeta struct {
	Pagination Pagination `json:"pagination"`
	Stats      Stats      `json:"stats"`
}

type listDocument struct {
	Data []Resource `json:"data"`
	Meta listMeta   `json:"meta"`
}
