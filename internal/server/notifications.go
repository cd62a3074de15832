package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
)

func registerNotifications(api huma.API, e engine.Engine) {
	type userPath struct {
		UserID string `path:"userId"`
	}
	type notificationPath struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications/user/{userId}",
		Summary:     "List a user's notifications",
		Tags:        []string{"notifications"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *userPath) (*struct {
		Body NotificationListEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, unread, err := e.ListNotifications(ctx, actorID, input.UserID)
		if err != nil {
			return nil, handleError(err, "Failed to fetch notifications")
		}
		return &struct {
			Body NotificationListEnvelope `json:"body"`
		}{Body: NotificationListEnvelope{
			Success:       true,
			Count:         len(items),
			UnreadCount:   unread,
			Notifications: nonNilNotifications(items),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPatch,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark one notification read",
		Tags:        []string{"notifications"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *notificationPath) (*struct {
		Body NotificationEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.MarkNotificationRead(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(err, "Failed to update notification")
		}
		return &struct {
			Body NotificationEnvelope `json:"body"`
		}{Body: NotificationEnvelope{Success: true, Notification: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-all-notifications-read",
		Method:      http.MethodPatch,
		Path:        "/notifications/user/{userId}/read-all",
		Summary:     "Mark all of a user's notifications read",
		Tags:        []string{"notifications"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *userPath) (*struct {
		Body ReadAllEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		updated, err := e.MarkAllNotificationsRead(ctx, actorID, input.UserID)
		if err != nil {
			return nil, handleError(err, "Failed to update notifications")
		}
		return &struct {
			Body ReadAllEnvelope `json:"body"`
		}{Body: ReadAllEnvelope{Success: true, Message: "All notifications marked as read", Updated: updated}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-notification",
		Method:      http.MethodDelete,
		Path:        "/notifications/{id}",
		Summary:     "Delete notification",
		Tags:        []string{"notifications"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *notificationPath) (*struct {
		Body MessageEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteNotification(ctx, actorID, input.ID); err != nil {
			return nil, handleError(err, "Failed to delete notification")
		}
		return &struct {
			Body MessageEnvelope `json:"body"`
		}{Body: MessageEnvelope{Success: true, Message: "Notification deleted"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-notification",
		Method:        http.MethodPost,
		Path:          "/notifications",
		Summary:       "Record a notification for yourself",
		Tags:          []string{"notifications"},
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateNotificationRequest `json:"body"`
	}) (*struct {
		Body NotificationEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.CreateNotification(ctx, actorID, engine.NotificationCreateOptions{
			UserID:  input.Body.UserID,
			Type:    domain.NotificationType(input.Body.Type),
			Title:   input.Body.Title,
			Message: input.Body.Message,
			TaskID:  input.Body.TaskID,
			Points:  input.Body.Points,
		})
		if err != nil {
			return nil, handleError(err, "Failed to create notification")
		}
		return &struct {
			Body NotificationEnvelope `json:"body"`
		}{Body: NotificationEnvelope{Success: true, Notification: n}}, nil
	})
}
