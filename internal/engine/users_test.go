package engine_test

import (
	"errors"
	"testing"
	"time"

	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/engine/auth"
)

func TestRegisterLoginProfile(t *testing.T) {
	env := newTestEnv(t)
	sess, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{Name: "Ada", Email: "Ada@Example.com", Password: "longenough", ConfirmPassword: "longenough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.Token == "" || sess.User.Email != "ada@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if _, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{Name: "Ada", Email: "ada@example.com", Password: "longenough"}); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	login, err := env.Engine.Login(env.Ctx, "ADA@example.com", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	userID, err := env.Engine.Authenticate(login.Token)
	if err != nil || userID != sess.User.ID {
		t.Fatalf("authenticate: %s %v", userID, err)
	}
	profile, err := env.Engine.Profile(env.Ctx, userID)
	if err != nil || profile.Name != "Ada" {
		t.Fatalf("profile: %+v %v", profile, err)
	}

	if _, err := env.Engine.Login(env.Ctx, "ada@example.com", "wrong-password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, "nobody@example.com", "longenough"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		opts engine.RegisterOptions
		want string
	}{
		{"missing name", engine.RegisterOptions{Email: "a@b.co", Password: "longenough"}, "Name is required"},
		{"bad email", engine.RegisterOptions{Name: "A", Email: "nope", Password: "longenough"}, "Email must be a valid email address"},
		{"short password", engine.RegisterOptions{Name: "A", Email: "a@b.co", Password: "short"}, "Password must be at least 8 characters"},
		{"mismatch", engine.RegisterOptions{Name: "A", Email: "a@b.co", Password: "longenough", ConfirmPassword: "different"}, "Passwords do not match"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.Register(env.Ctx, tc.opts)
			var ve engine.ValidationError
			if !errors.As(err, &ve) || ve.Message != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}
}

func TestNotificationsScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	points := 10
	n, err := env.Engine.CreateNotification(env.Ctx, "alice", engine.NotificationCreateOptions{
		UserID: "alice", Type: domain.NotificationPointsEarned, Title: "Points", Message: "You earned 10 points", Points: &points,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.CreateNotification(env.Ctx, "alice", engine.NotificationCreateOptions{
		UserID: "bob", Type: domain.NotificationReminder, Title: "x", Message: "y",
	}); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("expected forbidden for other user, got %v", err)
	}
	if _, err := env.Engine.CreateNotification(env.Ctx, "alice", engine.NotificationCreateOptions{
		UserID: "alice", Type: "party", Title: "x", Message: "y",
	}); !isValidation(err) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
	if _, _, err := env.Engine.ListNotifications(env.Ctx, "bob", "alice"); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("expected forbidden list, got %v", err)
	}
	if _, err := env.Engine.MarkNotificationRead(env.Ctx, "bob", n.ID); !isNotFound(err) {
		t.Fatalf("bob mark read: expected not found, got %v", err)
	}
	read, err := env.Engine.MarkNotificationRead(env.Ctx, "alice", n.ID)
	if err != nil || !read.Read {
		t.Fatalf("mark read: %+v %v", read, err)
	}
	if err := env.Engine.DeleteNotification(env.Ctx, "bob", n.ID); !isNotFound(err) {
		t.Fatalf("bob delete: expected not found, got %v", err)
	}
	if err := env.Engine.DeleteNotification(env.Ctx, "alice", n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	items, unread, err := env.Engine.ListNotifications(env.Ctx, "alice", "alice")
	if err != nil || len(items) != 0 || unread != 0 {
		t.Fatalf("expected empty list, got %d items unread=%d err=%v", len(items), unread, err)
	}
}

func TestMarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		if _, err := env.Engine.CreateNotification(env.Ctx, "alice", engine.NotificationCreateOptions{
			UserID: "alice", Type: domain.NotificationReminder, Title: "Reminder", Message: "stretch",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	updated, err := env.Engine.MarkAllNotificationsRead(env.Ctx, "alice", "alice")
	if err != nil || updated != 3 {
		t.Fatalf("mark all: %d %v", updated, err)
	}
	_, unread, _ := env.Engine.ListNotifications(env.Ctx, "alice", "alice")
	if unread != 0 {
		t.Fatalf("expected 0 unread, got %d", unread)
	}
}

func TestSweepDueReminders(t *testing.T) {
	env := newTestEnv(t)
	today, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Owner: "alice", Title: "Pay rent", DueDate: "2024-01-01T17:00:00Z"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Owner: "alice", Title: "Later", DueDate: "2024-01-05"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	finished, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Owner: "bob", Title: "Done already", DueDate: "2024-01-01"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, "bob", finished.ID, []byte(`{"status":"done"}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	created, err := env.Engine.SweepDueReminders(env.Ctx)
	if err != nil || created != 1 {
		t.Fatalf("first sweep: created=%d err=%v", created, err)
	}
	env.tick(time.Hour)
	created, err = env.Engine.SweepDueReminders(env.Ctx)
	if err != nil || created != 0 {
		t.Fatalf("second sweep should dedupe: created=%d err=%v", created, err)
	}
	items, _, err := env.Engine.ListNotifications(env.Ctx, "alice", "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Message != `"Pay rent" is due today!` || items[0].TaskID != today.ID {
		t.Fatalf("unexpected reminders %+v", items)
	}
}
