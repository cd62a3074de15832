package server

import (
	"taskdeck/internal/domain"
)

// Request payloads

// CreateTaskRequest leaves every field optional in the schema, and the
// handler takes it by pointer, so a missing title or an empty body is
// reported as "Title is required" rather than a schema error.
type CreateTaskRequest struct {
	_           struct{} `json:"-" additionalProperties:"true"`
	Title       string   `json:"title,omitempty" example:"Buy milk"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty" example:"high"`
	DueDate     string   `json:"dueDate,omitempty" example:"2024-06-01"`
}

type RegisterRequest struct {
	_               struct{} `json:"-" additionalProperties:"true"`
	Name            string   `json:"name,omitempty" example:"Ada Lovelace"`
	Email           string   `json:"email,omitempty" example:"ada@example.com"`
	Password        string   `json:"password,omitempty"`
	ConfirmPassword string   `json:"confirmPassword,omitempty"`
}

type LoginRequest struct {
	_        struct{} `json:"-" additionalProperties:"true"`
	Email    string   `json:"email,omitempty" example:"ada@example.com"`
	Password string   `json:"password,omitempty"`
}

type CreateNotificationRequest struct {
	UserID  string `json:"userId"`
	Type    string `json:"type" example:"reminder"`
	Title   string `json:"title"`
	Message string `json:"message"`
	TaskID  string `json:"taskId,omitempty"`
	Points  *int   `json:"points,omitempty"`
}

// Response payloads

type TaskEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty" example:"Task created successfully"`
	Task    domain.Task `json:"task"`
}

type TaskListEnvelope struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Tasks   []domain.Task `json:"tasks"`
}

type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message" example:"Task deleted successfully"`
}

type SessionEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    domain.User `json:"user"`
}

type UserEnvelope struct {
	Success bool        `json:"success"`
	User    domain.User `json:"user"`
}

type NotificationListEnvelope struct {
	Success       bool                  `json:"success"`
	Count         int                   `json:"count"`
	UnreadCount   int                   `json:"unreadCount"`
	Notifications []domain.Notification `json:"notifications"`
}

type NotificationEnvelope struct {
	Success      bool                `json:"success"`
	Notification domain.Notification `json:"notification"`
}

type ReadAllEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}

func nonNilTasks(items []domain.Task) []domain.Task {
	if items == nil {
		return []domain.Task{}
	}
	return items
}

func nonNilNotifications(items []domain.Notification) []domain.Notification {
	if items == nil {
		return []domain.Notification{}
	}
	return items
}
