package tasks

import (
	"bytes"
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

// tokenVerifier treats the bearer token as the user id.
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(token string) (middleware.Identity, error) {
	return middleware.Identity{UserID: token}, nil
}

func newTestServer() (*chi.Mux, *Service) {
	svc, _ := newTestService()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(middleware.AuthConfig{Verifier: tokenVerifier{}}))
		RegisterRoutes(r, svc, logger)
	})
	return r, svc
}

func do(t *testing.T, r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to parse JSON: %v (body=%s)", err, rec.Body.String())
	}
	return v
}

func TestPostTasks_Success(t *testing.T) {
	r, _ := newTestServer()

	body := []byte(`{"title":"learn chi","description":"routers","dueDate":"2025-09-01","priority":"High"}`)
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer alice")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body=%s", rec.Code, rec.Body.String())
	}

	got := decode[Task](t, rec)
	if got.ID == "" {
		t.Errorf("expected non-empty ID")
	}
	if got.Owner != "alice" {
		t.Errorf("expected owner alice, got %q", got.Owner)
	}
	if got.Title != "learn chi" {
		t.Errorf("expected Title=learn chi, got %q", got.Title)
	}
	if got.Status != StatusPending {
		t.Errorf("new tasks should default to Pending, got %q", got.Status)
	}
	if got.Priority != PriorityHigh {
		t.Errorf("expected priority High, got %q", got.Priority)
	}
	if got.DueDate == nil || got.DueDate.String() != "2025-09-01" {
		t.Errorf("expected dueDate 2025-09-01, got %v", got.DueDate)
	}
	if got.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}
}

func TestPostTasks_IgnoresClientOwner(t *testing.T) {
	r, _ := newTestServer()

	rec := do(t, r, http.MethodPost, "/tasks", "alice", `{"title":"x","owner":"mallory","id":"chosen"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	got := decode[Task](t, rec)
	if got.Owner != "alice" || got.ID == "chosen" {
		t.Fatalf("client must not choose owner or id: %+v", got)
	}
}

func TestPostTasks_EmptyDueDateMeansNone(t *testing.T) {
	r, _ := newTestServer()

	rec := do(t, r, http.MethodPost, "/tasks", "alice", `{"title":"x","dueDate":"","priority":"Medium","status":"Pending"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[Task](t, rec); got.DueDate != nil {
		t.Fatalf("expected no due date, got %v", got.DueDate)
	}
}

func TestPostTasks_TitleRequired(t *testing.T) {
	r, svc := newTestServer()

	for _, body := range []string{`{"title":""}`, `{"title":"   "}`, `{}`} {
		rec := do(t, r, http.MethodPost, "/tasks", "alice", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected status 400, got %d, body=%s", body, rec.Code, rec.Body.String())
		}
		errResp := decode[errResponse](t, rec)
		if errResp.Error != "validation_error" {
			t.Errorf("expected error 'validation_error', got %q", errResp.Error)
		}
		if len(errResp.Details) != 1 || errResp.Details[0].Field != "title" {
			t.Errorf("expected a title detail, got %+v", errResp.Details)
		}
	}

	list, err := svc.List(t.Context(), "alice", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("nothing should be persisted, got %d tasks", len(list))
	}
}

func TestPostTasks_InvalidFields(t *testing.T) {
	r, _ := newTestServer()

	tests := []struct {
		body  string
		field string
	}{
		{`{"title":"x","priority":"Urgent"}`, "priority"},
		{`{"title":"x","status":"Done"}`, "status"},
		{`{"title":"x","dueDate":"next week"}`, "dueDate"},
		{`{"title":42}`, "title"},
	}
	for _, tt := range tests {
		rec := do(t, r, http.MethodPost, "/tasks", "alice", tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", tt.body, rec.Code)
		}
		errResp := decode[errResponse](t, rec)
		if len(errResp.Details) == 0 || errResp.Details[0].Field != tt.field {
			t.Errorf("body %s: expected detail for %s, got %+v", tt.body, tt.field, errResp.Details)
		}
	}
}

func TestPostTasks_InvalidJSON(t *testing.T) {
	r, _ := newTestServer()

	for _, body := range []string{`{"title":`, `[1,2]`, `"str"`} {
		rec := do(t, r, http.MethodPost, "/tasks", "alice", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if errResp := decode[errResponse](t, rec); errResp.Error != "invalid_json" {
			t.Errorf("expected error 'invalid_json', got %q", errResp.Error)
		}
	}
}

func TestTasks_BodyTooLarge(t *testing.T) {
	r, _ := newTestServer()
	body := `{"title":"big","description":"` + strings.Repeat("x", maxBodyBytes+1) + `"}`

	for _, req := range []struct{ method, path string }{
		{http.MethodPost, "/tasks"},
		{http.MethodPut, "/tasks/any-id"},
	} {
		rec := do(t, r, req.method, req.path, "alice", body)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("%s %s: expected status 413, got %d, body=%s", req.method, req.path, rec.Code, rec.Body.String())
		}
		if errResp := decode[errResponse](t, rec); errResp.Error != "body_too_large" {
			t.Errorf("expected error 'body_too_large', got %q", errResp.Error)
		}
	}
}

func TestTasks_RequireAuth(t *testing.T) {
	r, _ := newTestServer()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/tasks"},
		{http.MethodPost, "/tasks"},
		{http.MethodGet, "/tasks/x"},
		{http.MethodPut, "/tasks/x"},
		{http.MethodDelete, "/tasks/x"},
	} {
		rec := do(t, r, tc.method, tc.path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestGetTasks_HappyPath(t *testing.T) {
	r, svc := newTestServer()
	ctx := t.Context()

	if _, err := svc.Create(ctx, "alice", NewTask{Title: "seeded task"}); err != nil {
		t.Fatalf("unexpected error seeding: %v", err)
	}
	if _, err := svc.Create(ctx, "alice", NewTask{Title: "done task", Status: StatusCompleted}); err != nil {
		t.Fatalf("unexpected error seeding: %v", err)
	}
	if _, err := svc.Create(ctx, "bob", NewTask{Title: "bob task"}); err != nil {
		t.Fatalf("unexpected error seeding: %v", err)
	}

	rec := do(t, r, http.MethodGet, "/tasks", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	list := decode[[]Task](t, rec)
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list))
	}
	if list[0].Title != "done task" || list[1].Title != "seeded task" {
		t.Errorf("expected newest first, got %q, %q", list[0].Title, list[1].Title)
	}

	rec = do(t, r, http.MethodGet, "/tasks?status=Completed", "alice", "")
	list = decode[[]Task](t, rec)
	if len(list) != 1 || list[0].Status != StatusCompleted {
		t.Fatalf("expected only completed tasks, got %+v", list)
	}

	rec = do(t, r, http.MethodGet, "/tasks?status=Later", "alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/tasks", "carol", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array for a new user, got %s", rec.Body.String())
	}
}

func TestTaskByID_ForeignOwnerIs404(t *testing.T) {
	r, svc := newTestServer()

	task, err := svc.Create(t.Context(), "alice", NewTask{Title: "secret"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	foreign := do(t, r, http.MethodGet, "/tasks/"+task.ID, "bob", "")
	missing := do(t, r, http.MethodGet, "/tasks/nope", "bob", "")
	if foreign.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404/404, got %d/%d", foreign.Code, missing.Code)
	}
	if foreign.Body.String() != missing.Body.String() {
		t.Fatalf("foreign and missing responses differ:\n%s\n%s", foreign.Body.String(), missing.Body.String())
	}

	if rec := do(t, r, http.MethodPut, "/tasks/"+task.ID, "bob", `{"title":"pwned"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("PUT as bob: expected 404, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/tasks/"+task.ID, "bob", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("DELETE as bob: expected 404, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/tasks/"+task.ID, "alice", ""); rec.Code != http.StatusOK {
		t.Fatalf("GET as alice: expected 200, got %d", rec.Code)
	}
}

func TestPutTask_PartialUpdate(t *testing.T) {
	r, _ := newTestServer()

	created := decode[Task](t, do(t, r, http.MethodPost, "/tasks", "alice",
		`{"title":"Buy milk","description":"2 litres","dueDate":"2025-05-01"}`))

	rec := do(t, r, http.MethodPut, "/tasks/"+created.ID, "alice", `{"status":"Completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	updated := decode[Task](t, rec)
	if updated.Status != StatusCompleted || updated.Title != "Buy milk" || updated.Description != "2 litres" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if updated.DueDate == nil || updated.DueDate.String() != "2025-05-01" {
		t.Fatalf("due date should be untouched: %v", updated.DueDate)
	}

	got := decode[Task](t, do(t, r, http.MethodGet, "/tasks/"+created.ID, "alice", ""))
	if got.Title != "Buy milk" || got.Description != "2 litres" || got.Status != StatusCompleted {
		t.Fatalf("GET after PUT: %+v", got)
	}
}

func TestPutTask_EchoedTaskCannotChangeOwner(t *testing.T) {
	r, _ := newTestServer()

	created := decode[Task](t, do(t, r, http.MethodPost, "/tasks", "alice", `{"title":"mine"}`))

	body := `{"_id":"other","id":"other","owner":"mallory","createdAt":"2000-01-01T00:00:00Z","title":"mine","status":"Completed","dueDate":null}`
	rec := do(t, r, http.MethodPut, "/tasks/"+created.ID, "alice", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	updated := decode[Task](t, rec)
	if updated.Owner != "alice" || updated.ID != created.ID || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("immutable fields changed: %+v", updated)
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("expected status change to apply, got %q", updated.Status)
	}

	if rec := do(t, r, http.MethodGet, "/tasks/"+created.ID, "mallory", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("mallory must not see the task, got %d", rec.Code)
	}
}

func TestPutTask_ClearsDueDate(t *testing.T) {
	r, _ := newTestServer()

	created := decode[Task](t, do(t, r, http.MethodPost, "/tasks", "alice", `{"title":"x","dueDate":"2025-01-02"}`))
	updated := decode[Task](t, do(t, r, http.MethodPut, "/tasks/"+created.ID, "alice", `{"dueDate":null}`))
	if updated.DueDate != nil {
		t.Fatalf("expected due date cleared, got %v", updated.DueDate)
	}
}

func TestPutTask_RejectsBlankTitle(t *testing.T) {
	r, _ := newTestServer()

	created := decode[Task](t, do(t, r, http.MethodPost, "/tasks", "alice", `{"title":"x"}`))
	for _, body := range []string{`{"title":"  "}`, `{"title":null}`, `{"priority":""}`} {
		rec := do(t, r, http.MethodPut, "/tasks/"+created.ID, "alice", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestToggleTask(t *testing.T) {
	r, _ := newTestServer()

	created := decode[Task](t, do(t, r, http.MethodPost, "/tasks", "alice", `{"title":"x"}`))
	rec := do(t, r, http.MethodPost, "/tasks/"+created.ID+"/toggle", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[Task](t, rec); got.Status != StatusCompleted {
		t.Fatalf("expected Completed, got %q", got.Status)
	}
}

func TestDeleteTask(t *testing.T) {
	r, _ := newTestServer()

	created := decode[Task](t, do(t, r, http.MethodPost, "/tasks", "alice", `{"title":"Buy milk"}`))

	rec := do(t, r, http.MethodDelete, "/tasks/"+created.ID, "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[deleteResponse](t, rec); resp.ID != created.ID || resp.Message == "" {
		t.Fatalf("unexpected confirmation %+v", resp)
	}

	if rec := do(t, r, http.MethodGet, "/tasks/"+created.ID, "alice", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}
