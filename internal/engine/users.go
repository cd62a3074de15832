package engine

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"taskdeck/internal/domain"
	"taskdeck/internal/engine/auth"
	"taskdeck/internal/repo"
)

type RegisterOptions struct {
	Name            string `validate:"required,max=100"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8,max=72"`
	ConfirmPassword string `validate:"omitempty,eqfield=Password"`
}

// Session is an authenticated user together with a signed token.
type Session struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates an account and signs a token for it.
func (e Engine) Register(ctx context.Context, opts RegisterOptions) (Session, error) {
	opts.Name = strings.TrimSpace(opts.Name)
	opts.Email = strings.ToLower(strings.TrimSpace(opts.Email))
	if err := validate.Struct(opts); err != nil {
		return Session{}, validationFailure(err)
	}
	if _, err := mail.ParseAddress(opts.Email); err != nil {
		return Session{}, invalid("Email must be a valid email address")
	}
	hash, err := e.Hasher.Hash(opts.Password)
	if err != nil {
		return Session{}, err
	}
	now := e.now()
	u, err := e.Store.InsertUser(ctx, domain.User{
		Name:         opts.Name,
		Email:        opts.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return Session{}, fmt.Errorf("%w: email already registered", ErrConflict)
	}
	if err != nil {
		e.logger().WithError(err).Error("register user failed")
		return Session{}, storeErr("register user", "User", err)
	}
	e.logger().WithField("user", u.ID).Info("user registered")
	return e.session(u)
}

// Login checks credentials. Unknown emails and wrong passwords both yield
// auth.ErrInvalidCredentials.
func (e Engine) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, invalid("Email and password are required")
	}
	u, err := e.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, storeErr("login", "User", err)
	}
	if err := e.Hasher.Verify(u.PasswordHash, password); err != nil {
		return Session{}, err
	}
	return e.session(u)
}

func (e Engine) session(u domain.User) (Session, error) {
	token, expires, err := e.Tokens.Issue(u.ID, u.Name, u.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token, ExpiresAt: expires}, nil
}

// Profile returns the user behind an authenticated identity.
func (e Engine) Profile(ctx context.Context, userID string) (domain.User, error) {
	if err := requireOwner(userID); err != nil {
		return domain.User{}, err
	}
	u, err := e.Store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, storeErr("get user", "User", err)
	}
	return u, nil
}

// Authenticate resolves a bearer token to the user id it was issued for.
func (e Engine) Authenticate(token string) (string, error) {
	claims, err := e.Tokens.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
