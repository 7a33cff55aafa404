package jsonapi

import (
	"net/http"
	"strconv"
	"strings"
)

// Source locates the offending request member.
type Source struct {
	Pointer string `json:"pointer"`
}

// Error is one JSON:API error object.
type Error struct {
	Status string  `json:"status"`
	Title  string  `json:"title"`
	Code   string  `json:"code,omitempty"`
	Detail string  `json:"detail,omitempty"`
	Source *Source `json:"source,omitempty"`
}

// Document is the top-level error envelope.
type Document struct {
	Errors []Error `json:"errors"`
}

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// WriteError writes a single-error document.
func WriteError(w http.ResponseWriter, status int, code, title, detail string) {
	WriteErrors(w, status, Error{Title: title, Code: code, Detail: detail})
}

// WriteErrors writes errs under status; each error's Status defaults to it.
func WriteErrors(w http.ResponseWriter, status int, errs ...Error) {
	s := strconv.Itoa(status)
	for i := range errs {
		if errs[i].Status == "" {
			errs[i].Status = s
		}
	}
	WriteJSON(w, status, Document{Errors: errs})
}

// FieldError is one failed field check.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects field failures; it maps to 422.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a failure and returns e for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// Empty reports whether no failures were recorded.
func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

// Pointer builds /data/attributes/<field>. An empty field points at the
// fallback member ("attributes" for bodies, "query" for query strings).
func Pointer(field, fallback string) string {
	if field == "" {
		field = fallback
	}
	return "/data/attributes/" + field
}

// WriteValidation writes one 422 error per failed field.
func WriteValidation(w http.ResponseWriter, ve *ValidationError, fallback string) {
	errs := make([]Error, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		errs = append(errs, Error{
			Code:   CodeValidation,
			Title:  "Validation Error",
			Detail: f.Message,
			Source: &Source{Pointer: Pointer(f.Field, fallback)},
		})
	}
	WriteErrors(w, http.StatusUnprocessableEntity, errs...)
}

// WriteNotFound writes the 404 for resource ("Task" -> "The requested task was not found.").
func WriteNotFound(w http.ResponseWriter, resource string) {
	if resource == "" {
		resource = "Resource"
	}
	WriteError(w, http.StatusNotFound, CodeNotFound, "Resource Not Found",
		"The requested "+strings.ToLower(resource)+" was not found.")
}

// WriteInternal writes the generic 500; callers log the cause.
func WriteInternal(w http.ResponseWriter) {
	WriteErrors(w, http.StatusInternalServerError, Error{
		Title:  "Internal Server Error",
		Detail: "An unexpected error occurred.",
	})
}
