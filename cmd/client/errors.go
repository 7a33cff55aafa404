package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// APIError is a decoded non-2xx response.
type APIError struct {
	Status int
	Code   string
	Title  string
	Detail string
	// FieldErrors maps the last source.pointer segment to its message.
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("api %d: %s", e.Status, msg)
}

type errorDocument struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Code   string `json:"code"`
		Detail string `json:"detail"`
		Source *struct {
			Pointer string `json:"pointer"`
		} `json:"source"`
	} `json:"errors"`
}

// decodeAPIError consumes resp.Body. Bodies that are not error documents
// still yield an APIError carrying the HTTP status.
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var doc errorDocument
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Errors) == 0 {
		if s := strings.TrimSpace(string(body)); s != "" {
			apiErr.Detail = s
		}
		return apiErr
	}

	first := doc.Errors[0]
	if n, err := strconv.Atoi(first.Status); err == nil {
		apiErr.Status = n
	}
	apiErr.Code = first.Code
	if first.Title != "" {
		apiErr.Title = first.Title
	}
	apiErr.Detail = first.Detail

	for _, e := range doc.Errors {
		if e.Source == nil || e.Source.Pointer == "" {
			continue
		}
		if apiErr.FieldErrors == nil {
			apiErr.FieldErrors = make(map[string]string)
		}
		p := e.Source.Pointer
		apiErr.FieldErrors[p[strings.LastIndexByte(p, '/')+1:]] = e.Detail
	}
	return apiErr
}
