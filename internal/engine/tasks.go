package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/domain"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Owner       string
	Title       string          `validate:"required"`
	Description string          `validate:"max=5000"`
	Priority    domain.Priority `validate:"omitempty,oneof=low medium high"`
	DueDate     string
}

// CreateTask persists a new live task owned by opts.Owner with status todo.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if err := requireOwner(opts.Owner); err != nil {
		return domain.Task{}, err
	}
	opts.Title = strings.TrimSpace(opts.Title)
	if err := validate.Struct(opts); err != nil {
		return domain.Task{}, validationFailure(err)
	}
	var due *time.Time
	if strings.TrimSpace(opts.DueDate) != "" {
		d, err := domain.ParseDate(opts.DueDate)
		if err != nil {
			return domain.Task{}, invalid("Invalid due date")
		}
		due = &d
	}
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	now := e.now()
	t, err := e.Store.InsertTask(ctx, domain.Task{
		Title:       opts.Title,
		Description: opts.Description,
		Status:      domain.StatusTodo,
		Priority:    priority,
		DueDate:     due,
		Owner:       opts.Owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		e.logger().WithError(err).WithField("owner", opts.Owner).Error("create task failed")
		return domain.Task{}, storeErr("create task", "Task", err)
	}
	return t, nil
}

// ListTasks returns the owner's live tasks, newest first.
func (e Engine) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	tasks, err := e.Store.ListTasks(ctx, owner)
	if err != nil {
		e.logger().WithError(err).WithField("owner", owner).Error("list tasks failed")
		return nil, storeErr("list tasks", "Task", err)
	}
	return tasks, nil
}

func (e Engine) GetTask(ctx context.Context, owner, id string) (domain.Task, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Task{}, err
	}
	t, err := e.Store.GetTask(ctx, owner, id)
	if err != nil {
		return domain.Task{}, storeErr("get task", "Task", err)
	}
	return t, nil
}

// UpdateTask applies a JSON patch to the owner's live task. The target is
// resolved before the patch is checked, so a missing task reports not-found
// even when the patch is also invalid. Either every field applies or none.
func (e Engine) UpdateTask(ctx context.Context, owner, id string, raw []byte) (domain.Task, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Task{}, err
	}
	var before domain.Status
	t, err := e.Store.UpdateTask(ctx, owner, id, func(t *domain.Task) error {
		patch, err := DecodeTaskPatch(raw)
		if err != nil {
			return err
		}
		before = t.Status
		patch.Apply(t)
		t.UpdatedAt = e.advance(t.UpdatedAt)
		return nil
	})
	if err != nil {
		out := storeErr("update task", "Task", err)
		if _, ok := out.(*StoreError); ok {
			e.logger().WithError(err).WithFields(logrus.Fields{"owner": owner, "task": id}).Error("update task failed")
		}
		return domain.Task{}, out
	}
	if before != domain.StatusDone && t.Status == domain.StatusDone {
		e.notifyCompleted(ctx, t)
	}
	return t, nil
}

// SoftDeleteTask flags the owner's live task as deleted.
func (e Engine) SoftDeleteTask(ctx context.Context, owner, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if err := e.Store.SoftDeleteTask(ctx, owner, id, e.now()); err != nil {
		out := storeErr("delete task", "Task", err)
		if _, ok := out.(*StoreError); ok {
			e.logger().WithError(err).WithFields(logrus.Fields{"owner": owner, "task": id}).Error("delete task failed")
		}
		return out
	}
	return nil
}

// advance returns the current time, nudged past prev so updatedAt always
// moves forward even on coarse clocks.
func (e Engine) advance(prev time.Time) time.Time {
	now := e.now()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

func (e Engine) notifyCompleted(ctx context.Context, t domain.Task) {
	_, err := e.Store.InsertNotification(ctx, domain.Notification{
		UserID:    t.Owner,
		Type:      domain.NotificationTaskCompleted,
		Title:     "Task completed",
		Message:   fmt.Sprintf("You completed %q", t.Title),
		TaskID:    t.ID,
		CreatedAt: e.now(),
	})
	if err != nil {
		e.logger().WithError(err).WithField("task", t.ID).Warn("record completion notification failed")
	}
}
