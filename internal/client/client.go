// Package client is a typed HTTP client for the task tracker API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/s1natex/tasktracker/internal/auth"
	"github.com/s1natex/tasktracker/internal/tasks"
)

// ErrNoSession is returned by task calls made without a token.
var ErrNoSession = errors.New("not logged in")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []tasks.FieldError
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", e.StatusCode, e.Code)
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	for _, d := range e.Details {
		fmt.Fprintf(&b, "; %s: %s", d.Field, d.Message)
	}
	return b.String()
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// TaskInput is the body of a create or update call. Nil fields are omitted,
// so an update only touches what is set. An empty DueDate clears the date.
type TaskInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Register(ctx context.Context, name, email, password string) (Session, error) {
	var out Session
	body := map[string]string{"name": name, "email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context, s Session) (auth.User, error) {
	var out auth.User
	err := c.authed(ctx, s, http.MethodGet, "/auth/me", nil, &out)
	return out, err
}

// ListTasks returns the caller's tasks, newest first. status may be empty.
func (c *Client) ListTasks(ctx context.Context, s Session, status string) ([]tasks.Task, error) {
	path := "/tasks"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var out []tasks.Task
	err := c.authed(ctx, s, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetTask(ctx context.Context, s Session, id string) (tasks.Task, error) {
	var out tasks.Task
	err := c.authed(ctx, s, http.MethodGet, taskPath(id), nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, s Session, in TaskInput) (tasks.Task, error) {
	var out tasks.Task
	err := c.authed(ctx, s, http.MethodPost, "/tasks", in, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, s Session, id string, in TaskInput) (tasks.Task, error) {
	var out tasks.Task
	err := c.authed(ctx, s, http.MethodPut, taskPath(id), in, &out)
	return out, err
}

func (c *Client) ToggleStatus(ctx context.Context, s Session, id string) (tasks.Task, error) {
	var out tasks.Task
	err := c.authed(ctx, s, http.MethodPost, taskPath(id)+"/toggle", nil, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, s Session, id string) error {
	return c.authed(ctx, s, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}

func (c *Client) authed(ctx context.Context, s Session, method, path string, body, out any) error {
	if s.Token == "" {
		return ErrNoSession
	}
	return c.do(ctx, method, path, s.Token, body, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error   string             `json:"error"`
		Message string             `json:"message"`
		Details []tasks.FieldError `json:"details"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		apiErr.Details = body.Details
	} else {
		apiErr.Code = http.StatusText(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
