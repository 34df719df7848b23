package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/s1natex/tasktracker/internal/middleware"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

// RegisterRoutes mounts /auth/register, /auth/login and /auth/me. protect
// guards /auth/me and is normally middleware.AuthMiddleware.
func RegisterRoutes(r chi.Router, svc *Service, protect func(http.Handler) http.Handler, logger *slog.Logger) {
	h := &handler{svc: svc, logger: logger}
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.With(protect).Get("/auth/me", h.me)
}

type handler struct {
	svc    *Service
	logger *slog.Logger
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
		return
	}
	sess, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errResponse{Error: "unauthorized"})
		return
	}
	u, err := h.svc.Me(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var inErr *InputError
	switch {
	case errors.As(err, &inErr):
		writeJSON(w, http.StatusBadRequest, errResponse{
			Error:   "validation_error",
			Details: []fieldError{{Field: inErr.Field, Message: inErr.Message}},
		})
	case errors.Is(err, ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errResponse{Error: "email_taken"})
	case errors.Is(err, ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errResponse{Error: "invalid_credentials"})
	case errors.Is(err, ErrUserNotFound):
		// token outlived its account
		writeJSON(w, http.StatusUnauthorized, errResponse{Error: "unauthorized"})
	default:
		h.logger.ErrorContext(r.Context(), "auth_store_error",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
			slog.String("req_id", chimw.GetReqID(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "unexpected_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
