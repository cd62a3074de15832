package taskdecksdk

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionCheckAuth(t *testing.T) {
	_, c := newFake(t)
	s := NewSession(c)
	ctx := context.Background()

	if u, err := s.CheckAuth(ctx); u != nil || !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("no token: expected logged out, got %v %v", u, err)
	}
	c.SetToken("forged")
	if u, err := s.CheckAuth(ctx); u != nil || StatusCode(err) != 401 {
		t.Fatalf("bad token: expected 401 and no user, got %v %v", u, err)
	}
	if _, err := s.Login(ctx, alice.Email, "nope"); err == nil || s.User() != nil {
		t.Fatalf("bad password should leave session empty")
	}
	u, err := s.Login(ctx, alice.Email, "secret-pass")
	if err != nil || u == nil || u.ID != alice.ID {
		t.Fatalf("login: %v %v", u, err)
	}
	if s.Loading() {
		t.Fatalf("loading left set")
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.User() != nil || c.Token() != "" {
		t.Fatalf("logout kept state")
	}
	if _, err := s.RequireUser(); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestCacheRefetchesAfterMutations(t *testing.T) {
	_, s := loggedIn(t)
	cache := NewTaskCache(s)
	ctx := context.Background()

	created, err := cache.Create(ctx, TaskInput{Title: "Buy milk", Priority: "high"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, ok := cache.Find(created.ID); !ok || got.Title != "Buy milk" {
		t.Fatalf("created task not in cache: %+v", cache.Tasks())
	}
	if _, err := cache.Update(ctx, created.ID, TaskUpdate{"status": "in-progress"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := cache.Find(created.ID); got.Status != "in-progress" {
		t.Fatalf("cache not refreshed after update: %+v", got)
	}
	if err := cache.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := cache.Find(created.ID); ok || len(cache.Tasks()) != 0 {
		t.Fatalf("deleted task still cached")
	}
}

func TestCacheKeepsListOnError(t *testing.T) {
	f, s := loggedIn(t)
	cache := NewTaskCache(s)
	ctx := context.Background()
	if _, err := cache.Create(ctx, TaskInput{Title: "Keep me"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := cache.Create(ctx, TaskInput{Title: ""}); err == nil {
		t.Fatalf("expected validation failure")
	}
	if cache.Err() != "Title is required" || len(cache.Tasks()) != 1 {
		t.Fatalf("unexpected state err=%q tasks=%d", cache.Err(), len(cache.Tasks()))
	}

	f.mu.Lock()
	f.failTasks = true
	f.mu.Unlock()
	if err := cache.Refresh(ctx); err == nil {
		t.Fatalf("expected refresh failure")
	}
	if cache.Err() != "Failed to fetch tasks" || len(cache.Tasks()) != 1 {
		t.Fatalf("failed refresh changed list or message: err=%q tasks=%d", cache.Err(), len(cache.Tasks()))
	}

	if _, err := cache.Update(ctx, "t1", TaskUpdate{"owner": "x"}); err == nil || cache.Err() != "Invalid updates" {
		t.Fatalf("expected Invalid updates, got %v / %q", err, cache.Err())
	}

	f.mu.Lock()
	f.failTasks = false
	f.mu.Unlock()
	if err := cache.Refresh(ctx); err != nil || cache.Err() != "" {
		t.Fatalf("recovery: %v %q", err, cache.Err())
	}
}

func TestCacheRequiresUser(t *testing.T) {
	_, c := newFake(t)
	cache := NewTaskCache(NewSession(c))
	if err := cache.Refresh(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := cache.Create(context.Background(), TaskInput{Title: "x"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

// waitForTaskLists blocks until the fake has received n task list requests.
func waitForTaskLists(t *testing.T, f *fakeAPI, n int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&f.taskListCalls) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d task list requests", n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMutationRefetchesAfterSlowListInFlight(t *testing.T) {
	f, s := loggedIn(t)
	f.mu.Lock()
	f.taskDelay = 300 * time.Millisecond
	f.mu.Unlock()
	cache := NewTaskCache(s)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- cache.Refresh(ctx) }()
	waitForTaskLists(t, f, 1)

	created, err := cache.Create(ctx, TaskInput{Title: "new"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := cache.Find(created.ID); !ok {
		t.Fatalf("cache lacks created task after Create: %+v", cache.Tasks())
	}
	if err := <-done; err != nil {
		t.Fatalf("background refresh: %v", err)
	}
	if _, ok := cache.Find(created.ID); !ok {
		t.Fatalf("older list overwrote the refetch: %+v", cache.Tasks())
	}
}

func TestLogoutResetsCacheAndPoller(t *testing.T) {
	f, s := loggedIn(t)
	f.notifications = []Notification{{ID: "n1", UserID: alice.ID, Type: "reminder", Title: "A", Message: "a"}}
	cache := NewTaskCache(s)
	poller := NewPoller(s, time.Hour)
	ctx := context.Background()
	if _, err := cache.Create(ctx, TaskInput{Title: "private"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := poller.Refresh(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(cache.Tasks()) != 1 || poller.Unread() != 1 {
		t.Fatalf("setup: tasks=%d unread=%d", len(cache.Tasks()), poller.Unread())
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(cache.Tasks()) != 0 || cache.Err() != "" {
		t.Fatalf("cache kept state after logout: %+v %q", cache.Tasks(), cache.Err())
	}
	if snap := poller.Snapshot(); len(snap.Notifications) != 0 || snap.Unread != 0 {
		t.Fatalf("poller kept state after logout: %+v", snap)
	}
}
