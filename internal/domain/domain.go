package domain

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities high > medium > low; unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type Task struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status" enum:"todo,in-progress,done"`
	Priority    Priority   `json:"priority" enum:"low,medium,high"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Owner       string     `json:"user"`
	IsDeleted   bool       `json:"isDeleted"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type NotificationType string

const (
	NotificationDueDate       NotificationType = "due_date"
	NotificationTaskCompleted NotificationType = "task_completed"
	NotificationPointsEarned  NotificationType = "points_earned"
	NotificationAchievement   NotificationType = "achievement"
	NotificationReminder      NotificationType = "reminder"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationDueDate, NotificationTaskCompleted, NotificationPointsEarned, NotificationAchievement, NotificationReminder:
		return true
	}
	return false
}

type Notification struct {
	ID        string           `json:"_id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type" enum:"due_date,task_completed,points_earned,achievement,reminder"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	TaskID    string           `json:"taskId,omitempty"`
	Points    *int             `json:"points,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ParseDate accepts an RFC3339 timestamp or a bare YYYY-MM-DD date, which is
// read as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want RFC3339 or YYYY-MM-DD", s)
}
