package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/s1natex/tasktracker/internal/middleware"
)

const maxBodyBytes = 64 << 10

type errResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

type deleteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// RegisterRoutes mounts the task endpoints. The caller is expected to put
// them behind middleware.AuthMiddleware.
func RegisterRoutes(r chi.Router, svc *Service, logger *slog.Logger) {
	h := &handler{svc: svc, logger: logger}
	r.Post("/tasks", h.create)
	r.Get("/tasks", h.list)
	r.Get("/tasks/{id}", h.get)
	r.Put("/tasks/{id}", h.update)
	r.Delete("/tasks/{id}", h.delete)
	r.Post("/tasks/{id}/toggle", h.toggle)
}

type handler struct {
	svc    *Service
	logger *slog.Logger
}

func owner(r *http.Request) string {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id.UserID
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	in, verr := newTaskFromFields(fields)
	if verr != nil {
		h.writeError(w, r, verr)
		return
	}

	t, err := h.svc.Create(r.Context(), owner(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	var status *Status
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		st := Status(v)
		status = &st
	}

	tasks, err := h.svc.List(r.Context(), owner(r), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	p, verr := patchFromFields(fields)
	if verr != nil {
		h.writeError(w, r, verr)
		return
	}

	t, err := h.svc.Update(r.Context(), owner(r), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) toggle(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.ToggleStatus(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), owner(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Message: "task deleted", ID: id})
}

// writeError maps service errors to responses. Anything unrecognised is a
// store failure: it is logged and the caller gets a generic body.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "validation_error", Details: verr.Fields})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: "not_found", Message: "task not found"})
	case errors.Is(err, ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errResponse{Error: "unauthorized"})
	default:
		h.logger.ErrorContext(r.Context(), "task_store_error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("req_id", chimw.GetReqID(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "unexpected_error"})
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errResponse{Error: "body_too_large", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
