package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stridehq/stride/internal/types"
)

// HabitParams holds the fields for creating a habit.
type HabitParams struct {
	Name     string
	RemoteID *string
}

// HabitUpdate holds a partial update; nil fields are left unchanged.
type HabitUpdate struct {
	Name            *string
	Streak          *int
	LastCompletedAt *time.Time
	Active          *bool
}

// CreateHabit inserts a new habit paired with a pending outbox entry.
//
// Habits are push-disabled (the remote system exposes no habit write
// endpoint); the entry is still recorded so the ledger stays complete,
// and the push worker skips it.
func (s *Store) CreateHabit(ctx context.Context, p HabitParams) (*types.Habit, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
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
	INSERT INTO habits (remote_id, name, active, created_at, updated_at)
	VALUES (?, ?, 1, ?, ?)`,
		remoteID, p.Name, formatTime(now), formatTime(now))
	if err != nil {
		return nil, mapConstraintErr(err, "failed to insert habit")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get habit id: %w", err)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainHabit,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		RemoteID:  p.RemoteID,
		Action:    types.ActionCreate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit habit create: %w", err)
	}

	return &types.Habit{
		ID:        id,
		RemoteID:  p.RemoteID,
		Name:      p.Name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateHabit merges the provided fields and enqueues an outbox entry.
func (s *Store) UpdateHabit(ctx context.Context, id int64, u HabitUpdate) (*types.Habit, error) {
	now := time.Now()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sets := []string{"updated_at = ?"}
	args := []interface{}{formatTime(now)}
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Streak != nil {
		if *u.Streak < 0 {
			return nil, fmt.Errorf("%w: streak must not be negative (got %d)", ErrValidation, *u.Streak)
		}
		sets = append(sets, "streak = ?")
		args = append(args, *u.Streak)
	}
	if u.LastCompletedAt != nil {
		sets = append(sets, "last_completed_at = ?")
		args = append(args, formatTime(*u.LastCompletedAt))
	}
	if u.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, boolToInt(*u.Active))
	}
	args = append(args, id)

	res, err := tx.ExecContext(ctx, "UPDATE habits SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update habit %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("habit %d: %w", id, ErrNotFound)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainHabit,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		Action:    types.ActionUpdate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit habit update: %w", err)
	}

	return s.GetHabit(ctx, id)
}

// CompleteHabit records a completion: bumps the streak (or resets it to 1
// when more than a day has passed since the last completion) and stamps
// last_completed_at.
func (s *Store) CompleteHabit(ctx context.Context, id int64) (*types.Habit, error) {
	h, err := s.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	streak := 1
	if h.LastCompletedAt != nil && now.Sub(*h.LastCompletedAt) <= 48*time.Hour {
		streak = h.Streak + 1
	}

	return s.UpdateHabit(ctx, id, HabitUpdate{
		Streak:          &streak,
		LastCompletedAt: &now,
	})
}

// GetHabit returns a habit by local identifier.
func (s *Store) GetHabit(ctx context.Context, id int64) (*types.Habit, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, name, streak, last_completed_at, active, created_at, updated_at, synced_at
	FROM habits WHERE id = ?`, id)
	return scanHabit(row)
}

// ListHabits is a pure query with no synchronization side effects.
func (s *Store) ListHabits(ctx context.Context, activeOnly bool) ([]*types.Habit, error) {
	query := `
	SELECT id, remote_id, name, streak, last_completed_at, active, created_at, updated_at, synced_at
	FROM habits`
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var habits []*types.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func scanHabit(row rowScanner) (*types.Habit, error) {
	var (
		h             types.Habit
		remoteID      sql.NullString
		lastCompleted sql.NullString
		active        int
		createdAt     string
		updatedAt     string
		syncedAt      sql.NullString
	)
	err := row.Scan(&h.ID, &remoteID, &h.Name, &h.Streak, &lastCompleted,
		&active, &createdAt, &updatedAt, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan habit: %w", err)
	}

	h.RemoteID = nullStringToPtr(remoteID)
	h.LastCompletedAt = nullStringToTime(lastCompleted)
	h.Active = active != 0
	h.SyncedAt = nullStringToTime(syncedAt)

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse habit created_at: %w", err)
	}
	h.CreatedAt = created

	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse habit updated_at: %w", err)
	}
	h.UpdatedAt = updated

	return &h, nil
}
