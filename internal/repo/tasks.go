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

const taskColumns = `id,owner_id,title,COALESCE(description,'') AS description,status,priority,due_date,is_deleted,created_at,updated_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t                domain.Task
		status, priority string
		due              sql.NullString
		deleted          int
		created, updated string
	)
	err := row.Scan(&t.ID, &t.Owner, &t.Title, &t.Description, &status, &priority, &due, &deleted, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	t.IsDeleted = deleted != 0
	if t.DueDate, err = parseNullTime(due); err != nil {
		return t, fmt.Errorf("task %s due_date: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, fmt.Errorf("task %s created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, fmt.Errorf("task %s updated_at: %w", t.ID, err)
	}
	return t, nil
}

func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// InsertTask stores a new task, assigning an id when none is set.
func (r Repo) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(id,owner_id,title,description,status,priority,due_date,is_deleted,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Owner, t.Title, nullable(t.Description), string(t.Status), string(t.Priority), nullableTime(t.DueDate),
		boolToInt(t.IsDeleted), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// ListTasks returns the owner's live tasks, newest first.
func (r Repo) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE owner_id=? AND is_deleted=0 ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func (r Repo) GetTask(ctx context.Context, owner, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND owner_id=? AND is_deleted=0`, id, owner))
}

// UpdateTask loads the owner's live task, lets mutate change it, and writes
// the mutable columns back in the same transaction. A mutate error aborts
// the update with nothing written.
func (r Repo) UpdateTask(ctx context.Context, owner, id string, mutate func(*domain.Task) error) (domain.Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND owner_id=? AND is_deleted=0`, id, owner))
	if err != nil {
		return domain.Task{}, err
	}
	if err := mutate(&t); err != nil {
		return domain.Task{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, status=?, priority=?, due_date=?, updated_at=? WHERE id=? AND owner_id=? AND is_deleted=0`,
		t.Title, nullable(t.Description), string(t.Status), string(t.Priority), nullableTime(t.DueDate), formatTime(t.UpdatedAt), id, owner)
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (r Repo) SoftDeleteTask(ctx context.Context, owner, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET is_deleted=1, updated_at=? WHERE id=? AND owner_id=? AND is_deleted=0`, formatTime(at), id, owner)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return affectedOrNotFound(res)
}

// ListTasksDue returns live, unfinished tasks of every owner due in [from, to).
func (r Repo) ListTasksDue(ctx context.Context, from, to time.Time) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE is_deleted=0 AND status<>'done' AND due_date IS NOT NULL AND due_date>=? AND due_date<? ORDER BY owner_id, due_date`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}
