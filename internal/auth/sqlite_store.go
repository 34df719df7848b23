package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteUserStore struct {
	db *sql.DB
}

func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

func (s *SQLiteUserStore) ApplyMigrations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);
	`)
	if err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}

func (s *SQLiteUserStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UTC().Format(createdAtLayout))
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.findOne(ctx, `email = ?`, email)
}

func (s *SQLiteUserStore) FindByID(ctx context.Context, id string) (User, error) {
	return s.findOne(ctx, `id = ?`, id)
}

func (s *SQLiteUserStore) findOne(ctx context.Context, where string, arg any) (User, error) {
	var (
		u       User
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE `+where, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	if u.CreatedAt, err = time.Parse(createdAtLayout, created); err != nil {
		return User{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return u, nil
}
