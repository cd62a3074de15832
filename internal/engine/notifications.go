package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/domain"
)

type NotificationCreateOptions struct {
	UserID  string                  `validate:"required"`
	Type    domain.NotificationType `validate:"required,oneof=due_date task_completed points_earned achievement reminder"`
	Title   string                  `validate:"required,max=200"`
	Message string                  `validate:"required,max=2000"`
	TaskID  string
	Points  *int `validate:"omitempty,gte=0"`
}

func sameUser(actor, userID string) error {
	if err := requireOwner(actor); err != nil {
		return err
	}
	if actor != userID {
		return ErrForbidden
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first, and the
// number still unread.
func (e Engine) ListNotifications(ctx context.Context, actor, userID string) ([]domain.Notification, int, error) {
	if err := sameUser(actor, userID); err != nil {
		return nil, 0, err
	}
	items, err := e.Store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, 0, storeErr("list notifications", "Notification", err)
	}
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	return items, unread, nil
}

func (e Engine) MarkNotificationRead(ctx context.Context, actor, id string) (domain.Notification, error) {
	if err := requireOwner(actor); err != nil {
		return domain.Notification{}, err
	}
	n, err := e.Store.MarkNotificationRead(ctx, actor, id)
	if err != nil {
		return domain.Notification{}, storeErr("mark notification read", "Notification", err)
	}
	return n, nil
}

func (e Engine) MarkAllNotificationsRead(ctx context.Context, actor, userID string) (int64, error) {
	if err := sameUser(actor, userID); err != nil {
		return 0, err
	}
	n, err := e.Store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, storeErr("mark notifications read", "Notification", err)
	}
	return n, nil
}

func (e Engine) DeleteNotification(ctx context.Context, actor, id string) error {
	if err := requireOwner(actor); err != nil {
		return err
	}
	if err := e.Store.DeleteNotification(ctx, actor, id); err != nil {
		return storeErr("delete notification", "Notification", err)
	}
	return nil
}

// CreateNotification records a notification for the acting user.
func (e Engine) CreateNotification(ctx context.Context, actor string, opts NotificationCreateOptions) (domain.Notification, error) {
	if err := requireOwner(actor); err != nil {
		return domain.Notification{}, err
	}
	if err := validate.Struct(opts); err != nil {
		return domain.Notification{}, validationFailure(err)
	}
	if opts.UserID != actor {
		return domain.Notification{}, ErrForbidden
	}
	n, err := e.Store.InsertNotification(ctx, domain.Notification{
		UserID:    opts.UserID,
		Type:      opts.Type,
		Title:     opts.Title,
		Message:   opts.Message,
		TaskID:    opts.TaskID,
		Points:    opts.Points,
		CreatedAt: e.now(),
	})
	if err != nil {
		return domain.Notification{}, storeErr("create notification", "Notification", err)
	}
	return n, nil
}

// SweepDueReminders records one due_date notification per task due today
// (in the engine's location) that is not done, skipping tasks already
// reminded today. It returns how many notifications were created.
func (e Engine) SweepDueReminders(ctx context.Context) (int, error) {
	now := e.now().In(e.location())
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	due, err := e.Store.ListTasksDue(ctx, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return 0, storeErr("list due tasks", "Task", err)
	}
	created := 0
	for _, t := range due {
		seen, err := e.Store.HasNotification(ctx, t.Owner, t.ID, domain.NotificationDueDate, dayStart.UTC())
		if err != nil {
			return created, storeErr("check reminder", "Notification", err)
		}
		if seen {
			continue
		}
		if _, err := e.Store.InsertNotification(ctx, domain.Notification{
			UserID:    t.Owner,
			Type:      domain.NotificationDueDate,
			Title:     "Task due today",
			Message:   fmt.Sprintf("%q is due today!", t.Title),
			TaskID:    t.ID,
			CreatedAt: e.now(),
		}); err != nil {
			return created, storeErr("create reminder", "Notification", err)
		}
		created++
	}
	if created > 0 {
		e.logger().WithFields(logrus.Fields{"created": created, "due": len(due)}).Info("due reminders recorded")
	}
	return created, nil
}
