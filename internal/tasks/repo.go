package tasks

import (
	"context"
	"sort"
	"sync"
)

// Store persists tasks. Every lookup takes the owner together with the id so
// a task owned by someone else is reported as ErrNotFound.
type Store interface {
	Insert(ctx context.Context, t Task) error
	FindOwned(ctx context.Context, owner, id string) (Task, error)
	// ListOwned returns the owner's tasks, newest first. A nil status
	// matches every status.
	ListOwned(ctx context.Context, owner string, status *Status) ([]Task, error)
	UpdateOwned(ctx context.Context, owner, id string, p Patch) (Task, error)
	DeleteOwned(ctx context.Context, owner, id string) error
}

type memEntry struct {
	seq  int64
	task Task
}

type InMemoryRepo struct {
	mu    sync.Mutex
	seq   int64
	store map[string]memEntry
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: make(map[string]memEntry),
	}
}

func (r *InMemoryRepo) Insert(_ context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.store[t.ID] = memEntry{seq: r.seq, task: cloneTask(t)}
	return nil
}

func (r *InMemoryRepo) FindOwned(_ context.Context, owner, id string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.store[id]
	if !ok || e.task.Owner != owner {
		return Task{}, ErrNotFound
	}
	return cloneTask(e.task), nil
}

func (r *InMemoryRepo) ListOwned(_ context.Context, owner string, status *Status) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]memEntry, 0, len(r.store))
	for _, e := range r.store {
		if e.task.Owner != owner {
			continue
		}
		if status != nil && e.task.Status != *status {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
			return a.task.CreatedAt.After(b.task.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]Task, 0, len(entries))
	for _, e := range entries {
		out = append(out, cloneTask(e.task))
	}
	return out, nil
}

func (r *InMemoryRepo) UpdateOwned(_ context.Context, owner, id string, p Patch) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.store[id]
	if !ok || e.task.Owner != owner {
		return Task{}, ErrNotFound
	}
	p.applyTo(&e.task)
	r.store[id] = e
	return cloneTask(e.task), nil
}

func (r *InMemoryRepo) DeleteOwned(_ context.Context, owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.store[id]
	if !ok || e.task.Owner != owner {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}

// cloneTask detaches the DueDate pointer so callers cannot mutate stored state.
func cloneTask(t Task) Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}
