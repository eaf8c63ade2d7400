package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stridehq/stride/internal/types"
)

// TaskParams holds the fields for creating a task.
type TaskParams struct {
	Title    string
	Notes    string
	Priority int
	DueAt    *time.Time
	RemoteID *string
}

// TaskUpdate holds a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string
	Notes       *string
	Status      *types.TaskStatus
	Priority    *int
	DueAt       *time.Time
	CompletedAt *time.Time
}

// TaskFilter narrows ListTasks results. Zero values mean "any".
type TaskFilter struct {
	Status    types.TaskStatus
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// CreateTask inserts a new task and, in the same transaction, enqueues a
// pending outbox create entry for it.
func (s *Store) CreateTask(ctx context.Context, p TaskParams) (*types.Task, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.Priority < 0 || p.Priority > 4 {
		return nil, fmt.Errorf("%w: priority must be between 0 and 4 (got %d)", ErrValidation, p.Priority)
	}

	now := time.Now()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var remoteID sql.NullString
	if p.RemoteID != nil {
		remoteID = sql.NullString{String: *p.RemoteID, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO tasks (remote_id, title, notes, status, priority, due_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		remoteID, p.Title, p.Notes, string(types.TaskStatusTodo), p.Priority,
		timeToNullString(p.DueAt), formatTime(now), formatTime(now))
	if err != nil {
		return nil, mapConstraintErr(err, "failed to insert task")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get task id: %w", err)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainTask,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		RemoteID:  p.RemoteID,
		Action:    types.ActionCreate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task create: %w", err)
	}

	return &types.Task{
		ID:        id,
		RemoteID:  p.RemoteID,
		Title:     p.Title,
		Notes:     p.Notes,
		Status:    types.TaskStatusTodo,
		Priority:  p.Priority,
		DueAt:     p.DueAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateTask merges the provided fields, stamps updated_at, and enqueues a
// pending outbox update entry in the same transaction.
func (s *Store) UpdateTask(ctx context.Context, id int64, u TaskUpdate) (*types.Task, error) {
	now := time.Now()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sets := []string{"updated_at = ?"}
	args := []interface{}{formatTime(now)}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *u.Notes)
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.Priority != nil {
		if *u.Priority < 0 || *u.Priority > 4 {
			return nil, fmt.Errorf("%w: priority must be between 0 and 4 (got %d)", ErrValidation, *u.Priority)
		}
		sets = append(sets, "priority = ?")
		args = append(args, *u.Priority)
	}
	if u.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, formatTime(*u.DueAt))
	}
	if u.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, formatTime(*u.CompletedAt))
	}
	args = append(args, id)

	res, err := tx.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainTask,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		Action:    types.ActionUpdate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}

	return s.GetTask(ctx, id)
}

// GetTask returns a task by local identifier.
func (s *Store) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, title, notes, status, priority, due_at, completed_at, created_at, updated_at, synced_at
	FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks is a pure query with no synchronization side effects.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]*types.Task, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.DueBefore != nil {
		conds = append(conds, "due_at IS NOT NULL AND due_at < ?")
		args = append(args, formatTime(*f.DueBefore))
	}

	query := `
	SELECT id, remote_id, title, notes, status, priority, due_at, completed_at, created_at, updated_at, synced_at
	FROM tasks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY priority ASC, created_at ASC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTask hard-deletes a task row. The sync engine does not reconcile
// deletions; this is a local-only operation.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var (
		t           types.Task
		remoteID    sql.NullString
		status      string
		dueAt       sql.NullString
		completedAt sql.NullString
		createdAt   string
		updatedAt   string
		syncedAt    sql.NullString
	)
	err := row.Scan(&t.ID, &remoteID, &t.Title, &t.Notes, &status, &t.Priority,
		&dueAt, &completedAt, &createdAt, &updatedAt, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	t.RemoteID = nullStringToPtr(remoteID)
	t.Status = types.TaskStatus(status)
	t.DueAt = nullStringToTime(dueAt)
	t.CompletedAt = nullStringToTime(completedAt)
	t.SyncedAt = nullStringToTime(syncedAt)

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse task created_at: %w", err)
	}
	t.CreatedAt = created

	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse task updated_at: %w", err)
	}
	t.UpdatedAt = updated

	return &t, nil
}

// mapConstraintErr converts a SQLite unique violation on remote_id into the
// typed duplicate error; everything else is wrapped as-is.
func mapConstraintErr(err error, msg string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w", msg, ErrDuplicateRemoteID)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
