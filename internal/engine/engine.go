package engine

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"taskdeck/internal/domain"
	"taskdeck/internal/engine/auth"
)

// Store is the persistence contract shared by the SQLite repo and the Mongo
// store. Task reads and writes only ever match live (not soft-deleted)
// records of the given owner; misses return repo.ErrNotFound.
type Store interface {
	InsertTask(ctx context.Context, t domain.Task) (domain.Task, error)
	ListTasks(ctx context.Context, owner string) ([]domain.Task, error)
	GetTask(ctx context.Context, owner, id string) (domain.Task, error)
	UpdateTask(ctx context.Context, owner, id string, mutate func(*domain.Task) error) (domain.Task, error)
	SoftDeleteTask(ctx context.Context, owner, id string, at time.Time) error
	ListTasksDue(ctx context.Context, from, to time.Time) ([]domain.Task, error)

	InsertUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (domain.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error
	HasNotification(ctx context.Context, userID, taskID string, typ domain.NotificationType, since time.Time) (bool, error)
}

type Engine struct {
	Store    Store
	Hasher   auth.PasswordHasher
	Tokens   auth.Tokens
	Log      logrus.FieldLogger
	Now      func() time.Time
	Location *time.Location
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func New(store Store, tokens auth.Tokens, log logrus.FieldLogger) Engine {
	return Engine{
		Store:  store,
		Tokens: tokens,
		Log:    log,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

func (e Engine) location() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.UTC
}
