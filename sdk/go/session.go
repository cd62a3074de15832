package taskdecksdk

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAuthenticated is returned by operations that need a logged-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session tracks who is logged in on a Client. Create one per client and
// hand it to the TaskCache and Poller that should follow it.
type Session struct {
	client *Client

	mu       sync.RWMutex
	user     *User
	loading  bool
	onLogout []func()
}

func NewSession(c *Client) *Session {
	return &Session{client: c}
}

func (s *Session) Client() *Client { return s.client }

// OnLogout registers fn to run after Logout clears the session.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// User returns the current user or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// RequireUser returns the current user or ErrNotAuthenticated.
func (s *Session) RequireUser() (User, error) {
	if u := s.User(); u != nil {
		return *u, nil
	}
	return User{}, ErrNotAuthenticated
}

// CheckAuth asks the server who the token belongs to. Any failure leaves
// the session logged out and is returned for reporting.
func (s *Session) CheckAuth(ctx context.Context) (*User, error) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	var user *User
	var err error
	if s.client.Token() == "" {
		err = ErrNotAuthenticated
	} else {
		var u User
		u, err = s.client.Me(ctx)
		if err == nil {
			user = &u
		}
	}

	s.mu.Lock()
	s.user = user
	s.loading = false
	s.mu.Unlock()
	return s.User(), err
}

func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	if _, err := s.client.Login(ctx, email, password); err != nil {
		return nil, err
	}
	return s.CheckAuth(ctx)
}

func (s *Session) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if _, err := s.client.Register(ctx, in); err != nil {
		return nil, err
	}
	return s.CheckAuth(ctx)
}

// Logout clears the user and token locally even if the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	err := s.client.Logout(ctx)
	s.mu.Lock()
	s.user = nil
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return err
}
