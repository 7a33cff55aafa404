package tasks

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskmanager/cmd/internal/auth/api"
	"taskmanager/cmd/internal/jsonapi"
)

// Handler serves /tasks for the authenticated principal.
type Handler struct {
	log          *slog.Logger
	svc          *Service
	maxBodyBytes int64
}

func NewHandler(log *slog.Logger, svc *Service, maxBodyBytes int64) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, maxBodyBytes: maxBodyBytes}
}

// Routes mounts the task endpoints. r must already be behind authapi.RequireAuth.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleReplace)
		r.Patch("/{id}", h.handlePatch)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if err := jsonapi.DecodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		jsonapi.WriteBadJSON(w)
		return
	}
	t, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		h.writeErr(w, "tasks.create.fail", err)
		return
	}
	jsonapi.WriteJSON(w, http.StatusCreated, document{Data: Serialize(t)})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		var ve *jsonapi.ValidationError
		if errors.As(err, &ve) {
			jsonapi.WriteValidation(w, ve, "query")
			return
		}
		h.writeErr(w, "tasks.list.fail", err)
		return
	}
	page, err := h.svc.List(r.Context(), userID, q)
	if err != nil {
		h.writeErr(w, "tasks.list.fail", err)
		return
	}
	jsonapi.WriteJSON(w, http.StatusOK, listDocument{
		Data: SerializeAll(page.Tasks),
		Meta: listMeta{Pagination: page.Pagination, Stats: page.Stats},
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, "tasks.get.fail", err)
		return
	}
	jsonapi.WriteJSON(w, http.StatusOK, document{Data: Serialize(t)})
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if err := jsonapi.DecodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		jsonapi.WriteBadJSON(w)
		return
	}
	t, err := h.svc.Replace(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeErr(w, "tasks.replace.fail", err)
		return
	}
	jsonapi.WriteJSON(w, http.StatusOK, document{Data: Serialize(t)})
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in PatchInput
	if err := jsonapi.DecodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		jsonapi.WriteBadJSON(w)
		return
	}
	t, err := h.svc.Patch(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeErr(w, "tasks.patch.fail", err)
		return
	}
	jsonapi.WriteJSON(w, http.StatusOK, document{Data: Serialize(t)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, "tasks.delete.fail", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := authapi.PrincipalFrom(r.Context())
	if !ok {
		jsonapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", "Authorization header is required")
		return "", false
	}
	return p.UserID, true
}

// writeErr maps service errors; anything unexpected is logged under event.
func (h *Handler) writeErr(w http.ResponseWriter, event string, err error) {
	var ve *jsonapi.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonapi.WriteValidation(w, ve, "attributes")
	case errors.Is(err, ErrNotFound):
		jsonapi.WriteNotFound(w, "Task")
	default:
		h.log.Error(event, "err", err)
		jsonapi.WriteInternal(w)
	}
}
