package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/s1natex/tasktracker/internal/middleware"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	svc := newTestService(t)
	protect := middleware.AuthMiddleware(middleware.AuthConfig{Verifier: svc.tokens})
	r := chi.NewRouter()
	RegisterRoutes(r, svc, protect, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginMe(t *testing.T) {
	r := newTestRouter(t)

	rec := post(r, "/auth/register", `{"name":"Ada","email":"ada@example.com","password":"secret1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d, body=%s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password hash must not be serialized: %s", rec.Body.String())
	}

	rec = post(r, "/auth/login", `{"email":"ada@example.com","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	var sess Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("parse session: %v", err)
	}
	if sess.Token == "" || sess.User.Email != "ada@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	var me User
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("parse me: %v", err)
	}
	if me.ID != sess.User.ID || me.Name != "Ada" {
		t.Fatalf("unexpected me %+v", me)
	}
}

func TestAuthErrors(t *testing.T) {
	r := newTestRouter(t)

	if rec := post(r, "/auth/register", `{"name":"Ada","email":"ada@example.com","password":"secret1"}`); rec.Code != http.StatusCreated {
		t.Fatalf("seed register: %d", rec.Code)
	}

	tests := []struct {
		name, path, body string
		code             int
		errCode          string
	}{
		{"duplicate", "/auth/register", `{"name":"B","email":"ADA@example.com","password":"secret1"}`, http.StatusConflict, "email_taken"},
		{"short password", "/auth/register", `{"name":"B","email":"b@example.com","password":"1"}`, http.StatusBadRequest, "validation_error"},
		{"bad json", "/auth/register", `{"name":`, http.StatusBadRequest, "invalid_json"},
		{"wrong password", "/auth/login", `{"email":"ada@example.com","password":"wrong-one"}`, http.StatusUnauthorized, "invalid_credentials"},
		{"unknown user", "/auth/login", `{"email":"x@example.com","password":"secret1"}`, http.StatusUnauthorized, "invalid_credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(r, tt.path, tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d, body=%s", tt.code, rec.Code, rec.Body.String())
			}
			var resp errResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("parse: %v", err)
			}
			if resp.Error != tt.errCode {
				t.Fatalf("expected error %q, got %q", tt.errCode, resp.Error)
			}
		})
	}
}

func TestMe_RequiresToken(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
