package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// createdAtLayout is fixed width so that text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo uses a handle opened by storage.OpenSQLite; the caller owns it.
func NewSQLiteRepo(db *sql.DB) *SQLiteRepo {
	return &SQLiteRepo{db: db}
}

// ApplyMigrations ensures schema exists
func (r *SQLiteRepo) ApplyMigrations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_date TEXT,
	priority TEXT NOT NULL DEFAULT 'Medium',
	status TEXT NOT NULL DEFAULT 'Pending',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_status_created
	ON tasks (owner, status, created_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate tasks: %w", err)
	}
	return nil
}

const taskColumns = `id, owner, title, description, due_date, priority, status, created_at`

func (r *SQLiteRepo) Insert(ctx context.Context, t Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Owner, t.Title, t.Description, dueDateArg(t.DueDate),
		string(t.Priority), string(t.Status), t.CreatedAt.UTC().Format(createdAtLayout))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) FindOwned(ctx context.Context, owner, id string) (Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ? AND owner = ?
	`, id, owner)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepo) ListOwned(ctx context.Context, owner string, status *Status) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner = ?`
	args := []any{owner}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepo) UpdateOwned(ctx context.Context, owner, id string, p Patch) (Task, error) {
	if p.IsEmpty() {
		return r.FindOwned(ctx, owner, id)
	}

	var sets []string
	var args []any
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	} else if p.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, p.DueDate.String())
	}
	if p.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*p.Priority))
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	args = append(args, id, owner)

	row := r.db.QueryRowContext(ctx, `
		UPDATE tasks SET `+strings.Join(sets, ", ")+`
		WHERE id = ? AND owner = ?
		RETURNING `+taskColumns, args...)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepo) DeleteOwned(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (Task, error) {
	var (
		t        Task
		due      sql.NullString
		priority string
		status   string
		created  string
	)
	if err := s.Scan(&t.ID, &t.Owner, &t.Title, &t.Description, &due, &priority, &status, &created); err != nil {
		return Task{}, err
	}
	t.Priority = Priority(priority)
	t.Status = Status(status)
	if due.Valid {
		d, err := ParseDate(due.String)
		if err != nil {
			return Task{}, err
		}
		t.DueDate = &d
	}
	ts, err := time.Parse(createdAtLayout, created)
	if err != nil {
		return Task{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	t.CreatedAt = ts
	return t, nil
}

func dueDateArg(d *Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}
