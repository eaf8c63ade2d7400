package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stridehq/stride/internal/types"
)

// ProjectParams holds the fields for creating a project.
type ProjectParams struct {
	Name      string
	StartedAt *time.Time
	TargetAt  *time.Time
	RemoteID  *string
}

// ProjectUpdate holds a partial update; nil fields are left unchanged.
type ProjectUpdate struct {
	Name      *string
	Status    *types.ProjectStatus
	Progress  *int
	StartedAt *time.Time
	TargetAt  *time.Time
}

// ProjectFilter narrows ListProjects results.
type ProjectFilter struct {
	Status types.ProjectStatus
	Limit  int
	Offset int
}

// CreateProject inserts a new project paired with a pending outbox entry.
func (s *Store) CreateProject(ctx context.Context, p ProjectParams) (*types.Project, error) {
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
	INSERT INTO projects (remote_id, name, status, started_at, target_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		remoteID, p.Name, string(types.ProjectStatusActive),
		timeToNullString(p.StartedAt), timeToNullString(p.TargetAt),
		formatTime(now), formatTime(now))
	if err != nil {
		return nil, mapConstraintErr(err, "failed to insert project")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get project id: %w", err)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainProject,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		RemoteID:  p.RemoteID,
		Action:    types.ActionCreate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project create: %w", err)
	}

	return &types.Project{
		ID:        id,
		RemoteID:  p.RemoteID,
		Name:      p.Name,
		Status:    types.ProjectStatusActive,
		StartedAt: p.StartedAt,
		TargetAt:  p.TargetAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateProject merges the provided fields and enqueues an outbox entry.
func (s *Store) UpdateProject(ctx context.Context, id int64, u ProjectUpdate) (*types.Project, error) {
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
	if u.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, formatTime(*u.StartedAt))
	}
	if u.TargetAt != nil {
		sets = append(sets, "target_at = ?")
		args = append(args, formatTime(*u.TargetAt))
	}
	args = append(args, id)

	res, err := tx.ExecContext(ctx, "UPDATE projects SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update project %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainProject,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		Action:    types.ActionUpdate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project update: %w", err)
	}

	return s.GetProject(ctx, id)
}

// GetProject returns a project by local identifier.
func (s *Store) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, name, status, progress, started_at, target_at, created_at, updated_at, synced_at
	FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ListProjects is a pure query with no synchronization side effects.
func (s *Store) ListProjects(ctx context.Context, f ProjectFilter) ([]*types.Project, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `
	SELECT id, remote_id, name, status, progress, started_at, target_at, created_at, updated_at, synced_at
	FROM projects`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func scanProject(row rowScanner) (*types.Project, error) {
	var (
		p         types.Project
		remoteID  sql.NullString
		status    string
		startedAt sql.NullString
		targetAt  sql.NullString
		createdAt string
		updatedAt string
		syncedAt  sql.NullString
	)
	err := row.Scan(&p.ID, &remoteID, &p.Name, &status, &p.Progress,
		&startedAt, &targetAt, &createdAt, &updatedAt, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.RemoteID = nullStringToPtr(remoteID)
	p.Status = types.ProjectStatus(status)
	p.StartedAt = nullStringToTime(startedAt)
	p.TargetAt = nullStringToTime(targetAt)
	p.SyncedAt = nullStringToTime(syncedAt)

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project created_at: %w", err)
	}
	p.CreatedAt = created

	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project updated_at: %w", err)
	}
	p.UpdatedAt = updated

	return &p, nil
}
