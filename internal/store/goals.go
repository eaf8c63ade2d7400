package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stridehq/stride/internal/types"
)

// GoalParams holds the fields for creating a goal.
type GoalParams struct {
	Title    string
	TargetAt *time.Time
	RemoteID *string
}

// GoalUpdate holds a partial update; nil fields are left unchanged.
type GoalUpdate struct {
	Title    *string
	Status   *types.GoalStatus
	Progress *int
	TargetAt *time.Time
}

// CreateGoal inserts a new goal paired with a pending outbox entry.
func (s *Store) CreateGoal(ctx context.Context, p GoalParams) (*types.Goal, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
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
	INSERT INTO goals (remote_id, title, status, target_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		remoteID, p.Title, string(types.GoalStatusActive),
		timeToNullString(p.TargetAt), formatTime(now), formatTime(now))
	if err != nil {
		return nil, mapConstraintErr(err, "failed to insert goal")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get goal id: %w", err)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainGoal,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		RemoteID:  p.RemoteID,
		Action:    types.ActionCreate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit goal create: %w", err)
	}

	return &types.Goal{
		ID:        id,
		RemoteID:  p.RemoteID,
		Title:     p.Title,
		Status:    types.GoalStatusActive,
		TargetAt:  p.TargetAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateGoal merges the provided fields and enqueues an outbox entry.
func (s *Store) UpdateGoal(ctx context.Context, id int64, u GoalUpdate) (*types.Goal, error) {
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
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.Progress != nil {
		if *u.Progress < 0 || *u.Progress > 100 {
			return nil, fmt.Errorf("%w: progress must be between 0 and 100 (got %d)", ErrValidation, *u.Progress)
		}
		sets = append(sets, "progress = ?")
		args = append(args, *u.Progress)
	}
	if u.TargetAt != nil {
		sets = append(sets, "target_at = ?")
		args = append(args, formatTime(*u.TargetAt))
	}
	args = append(args, id)

	res, err := tx.ExecContext(ctx, "UPDATE goals SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update goal %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("goal %d: %w", id, ErrNotFound)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainGoal,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		Action:    types.ActionUpdate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit goal update: %w", err)
	}

	return s.GetGoal(ctx, id)
}

// GetGoal returns a goal by local identifier.
func (s *Store) GetGoal(ctx context.Context, id int64) (*types.Goal, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, title, status, progress, target_at, created_at, updated_at, synced_at
	FROM goals WHERE id = ?`, id)
	return scanGoal(row)
}

// ListGoals is a pure query with no synchronization side effects.
func (s *Store) ListGoals(ctx context.Context, status types.GoalStatus) ([]*types.Goal, error) {
	query := `
	SELECT id, remote_id, title, status, progress, target_at, created_at, updated_at, synced_at
	FROM goals`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*types.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func scanGoal(row rowScanner) (*types.Goal, error) {
	var (
		g         types.Goal
		remoteID  sql.NullString
		status    string
		targetAt  sql.NullString
		createdAt string
		updatedAt string
		syncedAt  sql.NullString
	)
	err := row.Scan(&g.ID, &remoteID, &g.Title, &status, &g.Progress,
		&targetAt, &createdAt, &updatedAt, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan goal: %w", err)
	}

	g.RemoteID = nullStringToPtr(remoteID)
	g.Status = types.GoalStatus(status)
	g.TargetAt = nullStringToTime(targetAt)
	g.SyncedAt = nullStringToTime(syncedAt)

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse goal created_at: %w", err)
	}
	g.CreatedAt = created

	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse goal updated_at: %w", err)
	}
	g.UpdatedAt = updated

	return &g, nil
}
