package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// PasswordHasher provides password hashing and verification functionality.
type PasswordHasher struct {
	cost    int
	compare func(hash, password []byte) error

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordHasher uses bcrypt.DefaultCost when cost is 0.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost, compare: bcrypt.CompareHashAndPassword}
}

// Hash generates a bcrypt hash of the given password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify checks if the provided password matches the hash.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return h.compare([]byte(hash), []byte(password)) == nil
}

// VerifyNothing compares password against a throwaway hash of the same cost
// and always reports false. Used on the unknown-email login path.
func (h *PasswordHasher) VerifyNothing(password string) bool {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("unused-password"), h.cost)
	})
	_ = h.compare(h.dummy, []byte(password))
	return false
}
