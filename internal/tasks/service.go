package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tasks")

// Service applies validation and owner scoping on top of a Store. It is the
// only component that talks to the Store.
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Service) start(ctx context.Context, op, owner string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tasks."+op, trace.WithAttributes(attribute.String("task.owner", owner)))
}

func finish(span trace.Span, op string, err error) {
	observe(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) Create(ctx context.Context, owner string, in NewTask) (t Task, err error) {
	ctx, span := s.start(ctx, "create", owner)
	defer func() { finish(span, "create", err) }()

	if owner == "" {
		return Task{}, ErrUnauthenticated
	}
	in, err = in.normalize()
	if err != nil {
		return Task{}, err
	}

	t = Task{
		ID:          s.newID(),
		Owner:       owner,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		Status:      in.Status,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return Task{}, err
	}
	span.SetAttributes(attribute.String("task.id", t.ID))
	return t, nil
}

// List returns the owner's tasks newest first, optionally only those with
// the given status.
func (s *Service) List(ctx context.Context, owner string, status *Status) (out []Task, err error) {
	ctx, span := s.start(ctx, "list", owner)
	defer func() { finish(span, "list", err) }()

	if owner == "" {
		return nil, ErrUnauthenticated
	}
	if status != nil {
		st, perr := ParseStatus(string(*status))
		if perr != nil {
			return nil, &ValidationError{Fields: []FieldError{{Field: "status", Message: "status must be one of Pending, Completed"}}}
		}
		status = &st
	}
	return s.store.ListOwned(ctx, owner, status)
}

func (s *Service) Get(ctx context.Context, owner, id string) (t Task, err error) {
	ctx, span := s.start(ctx, "get", owner)
	defer func() { finish(span, "get", err) }()

	if owner == "" {
		return Task{}, ErrUnauthenticated
	}
	return s.store.FindOwned(ctx, owner, id)
}

// Update merges p into the owned task. Fields p leaves nil are kept.
func (s *Service) Update(ctx context.Context, owner, id string, p Patch) (t Task, err error) {
	ctx, span := s.start(ctx, "update", owner)
	defer func() { finish(span, "update", err) }()

	if owner == "" {
		return Task{}, ErrUnauthenticated
	}
	p, err = p.normalize()
	if err != nil {
		return Task{}, err
	}
	return s.store.UpdateOwned(ctx, owner, id, p)
}

// ToggleStatus flips Pending and Completed. Concurrent writers race as
// last-write-wins.
func (s *Service) ToggleStatus(ctx context.Context, owner, id string) (t Task, err error) {
	ctx, span := s.start(ctx, "toggle", owner)
	defer func() { finish(span, "toggle", err) }()

	if owner == "" {
		return Task{}, ErrUnauthenticated
	}
	cur, err := s.store.FindOwned(ctx, owner, id)
	if err != nil {
		return Task{}, err
	}
	next := cur.Status.Toggled()
	return s.store.UpdateOwned(ctx, owner, id, Patch{Status: &next})
}

func (s *Service) Delete(ctx context.Context, owner, id string) (err error) {
	ctx, span := s.start(ctx, "delete", owner)
	defer func() { finish(span, "delete", err) }()

	if owner == "" {
		return ErrUnauthenticated
	}
	return s.store.DeleteOwned(ctx, owner, id)
}
