package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	appmw "github.com/s1natex/tasktracker/internal/middleware"
)

type staticVerifier map[string]appmw.Identity

func (v staticVerifier) VerifyToken(token string) (appmw.Identity, error) {
	id, ok := v[token]
	if !ok {
		return appmw.Identity{}, errors.New("bad token")
	}
	return id, nil
}

func newAuthRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(appmw.AuthMiddleware(appmw.AuthConfig{
		Verifier: staticVerifier{"tok_abc": {UserID: "u1", Email: "a@example.com"}},
	}))
	r.Get("/tasks", func(w http.ResponseWriter, r *http.Request) {
		id, ok := appmw.IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(id.UserID))
	})
	return r
}

func TestAuth_Bearer(t *testing.T) {
	r := newAuthRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tasks", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Fatalf("expected bearer challenge, got %q", rec.Header().Get("WWW-Authenticate"))
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/tasks", nil)
	req.Header.Set("Authorization", "Bearer tok_abc")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer, got %d", rec.Code)
	}
	if rec.Body.String() != "u1" {
		t.Fatalf("expected identity u1 in context, got %q", rec.Body.String())
	}
}

func TestAuth_RejectsBadCredentials(t *testing.T) {
	r := newAuthRouter()

	for _, header := range []string{
		"Bearer wrong",
		"Bearer ",
		"Basic dXNlcjpwYXNz",
		"tok_abc",
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/tasks", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"unauthorized"`) {
			t.Errorf("header %q: unexpected body %s", header, rec.Body.String())
		}
	}
}

func TestAuth_SchemeIsCaseInsensitive(t *testing.T) {
	r := newAuthRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tasks", nil)
	req.Header.Set("Authorization", "bearer tok_abc")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
