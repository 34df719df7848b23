package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_Hash(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
	}{
		{name: "simple password", password: "password123"},
		{name: "complex password", password: "P@ssw0rd!#$%^&*()"},
		{name: "unicode password", password: "密码123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if hash == "" || hash == tt.password {
				t.Fatalf("Hash() returned %q", hash)
			}
			if !hasher.Verify(tt.password, hash) {
				t.Error("Verify() returned false for correct password")
			}
		})
	}
}

func TestPasswordHasher_Verify(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)
	password := "testpassword123"

	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "correct password", password: password, want: true},
		{name: "wrong password", password: "wrongpassword", want: false},
		{name: "empty password", password: "", want: false},
		{name: "similar password", password: password + "1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasher.Verify(tt.password, hash); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPasswordHasher_DefaultCost(t *testing.T) {
	if h := NewPasswordHasher(0); h.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.DefaultCost)
	}
}

func TestPasswordHasher_VerifyNothing(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	if hasher.VerifyNothing("unused-password") {
		t.Fatal("VerifyNothing() must always report false")
	}
	cost, err := bcrypt.Cost(hasher.dummy)
	if err != nil {
		t.Fatalf("dummy hash is not a bcrypt hash: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("dummy cost = %d, want %d", cost, bcrypt.MinCost)
	}
}
