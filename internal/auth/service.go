package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const minPasswordLen = 6

var ErrInvalidCredentials = errors.New("invalid email or password")

// InputError reports a rejected registration or login field.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Field + ": " + e.Message }

// Session is what register and login hand back to clients.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type Service struct {
	users  UserStore
	hasher *PasswordHasher
	tokens *TokenManager
	now    func() time.Time
}

func NewService(users UserStore, hasher *PasswordHasher, tokens *TokenManager) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, name, email, password string) (Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	switch {
	case name == "":
		return Session{}, &InputError{Field: "name", Message: "name is required"}
	case email == "":
		return Session{}, &InputError{Field: "email", Message: "email is required"}
	case !validEmail(email):
		return Session{}, &InputError{Field: "email", Message: "email is not valid"}
	case utf8.RuneCountInString(password) < minPasswordLen:
		return Session{}, &InputError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLen)}
	case len(password) > maxPasswordBytes:
		return Session{}, &InputError{Field: "password", Message: fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return Session{}, err
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		s.hasher.VerifyNothing(password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *Service) session(u User) (Session, error) {
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
