package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskdeck/internal/domain"
)

const notificationColumns = `id,user_id,type,title,message,COALESCE(task_id,'') AS task_id,points,read,created_at`

func scanNotification(row rowScanner) (domain.Notification, error) {
	var (
		n       domain.Notification
		typ     string
		points  sql.NullInt64
		read    int
		created string
	)
	err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.TaskID, &points, &read, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return n, ErrNotFound
	}
	if err != nil {
		return n, err
	}
	n.Type = domain.NotificationType(typ)
	n.Read = read != 0
	if points.Valid {
		p := int(points.Int64)
		n.Points = &p
	}
	if n.CreatedAt, err = parseTime(created); err != nil {
		return n, err
	}
	return n, nil
}

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(id,user_id,type,title,message,task_id,points,read,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, nullable(n.TaskID), nullableIntPtr(n.Points), boolToInt(n.Read), formatTime(n.CreatedAt))
	if err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (r Repo) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id=? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationRead(ctx context.Context, userID, id string) (domain.Notification, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return domain.Notification{}, err
	}
	if err := affectedOrNotFound(res); err != nil {
		return domain.Notification{}, err
	}
	return scanNotification(r.DB.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE user_id=? AND read=0`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) DeleteNotification(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notifications WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// HasNotification reports whether a notification of typ for the task was
// recorded at or after since.
func (r Repo) HasNotification(ctx context.Context, userID, taskID string, typ domain.NotificationType, since time.Time) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM notifications WHERE user_id=? AND task_id=? AND type=? AND created_at>=?`,
		userID, taskID, string(typ), formatTime(since)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
