package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := PasswordHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatalf("hash must not equal password")
	}
	if err := h.Verify(hash, "correct horse"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := h.Verify(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestTokensRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tokens := Tokens{Secret: "s3cret", Issuer: "taskdeck", TTL: time.Hour, Now: func() time.Time { return now }}

	signed, expires, err := tokens.Issue("user-1", "Ada", "ada@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expires.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", expires)
	}
	claims, err := tokens.Parse(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "ada@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := tokens
	other.Secret = "different"
	if _, err := other.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	later := tokens
	later.Now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := later.Parse(signed); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokensRequireSecret(t *testing.T) {
	if _, _, err := (Tokens{}).Issue("u", "", ""); err == nil {
		t.Fatalf("expected error without secret")
	}
	if _, err := (Tokens{}).Parse("abc"); err == nil {
		t.Fatalf("expected error without secret")
	}
}
