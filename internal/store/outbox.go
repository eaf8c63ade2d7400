package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stridehq/stride/internal/types"
)

// NewOutboxEntry describes an entry to append to the ledger.
type NewOutboxEntry struct {
	Domain    types.Domain
	Direction types.SyncDirection
	LocalID   *int64
	RemoteID  *string
	Action    types.SyncAction
	Status    types.SyncStatus
	SyncedAt  *time.Time
}

// enqueueOutboxTx appends an entry inside an existing transaction. Entity
// writes call this so the mutation and its ledger row commit together.
func enqueueOutboxTx(ctx context.Context, tx *sql.Tx, e NewOutboxEntry, now time.Time) error {
	if e.Status == "" {
		e.Status = types.StatusPending
	}

	query := `
	INSERT INTO outbox (domain, direction, local_id, remote_id, action, status, created_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var localID sql.NullInt64
	if e.LocalID != nil {
		localID = sql.NullInt64{Int64: *e.LocalID, Valid: true}
	}
	var remoteID sql.NullString
	if e.RemoteID != nil {
		remoteID = sql.NullString{String: *e.RemoteID, Valid: true}
	}

	_, err := tx.ExecContext(ctx, query,
		string(e.Domain),
		string(e.Direction),
		localID,
		remoteID,
		string(e.Action),
		string(e.Status),
		formatTime(now),
		timeToNullString(e.SyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	return nil
}

// AppendOutbox appends a standalone ledger entry. The pull worker uses this
// for remote_to_local audit rows; entity writes go through the paired
// transaction path instead.
func (s *Store) AppendOutbox(ctx context.Context, e NewOutboxEntry) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := enqueueOutboxTx(ctx, tx, e, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

// DequeuePending returns up to limit oldest pending local_to_remote entries,
// oldest first. Excluded domains never surface: their pending entries stay
// in the ledger without occupying batch slots, so a backlog of undrainable
// entries cannot starve the other domains. It does not change entry status;
// the push worker marks each entry terminal as it processes it, and the
// single active worker per process is what keeps a drain exclusive.
func (s *Store) DequeuePending(ctx context.Context, limit int, excluded ...types.Domain) ([]*types.OutboxEntry, error) {
	query := `
	SELECT id, domain, direction, local_id, remote_id, action, status, error_message, created_at, synced_at
	FROM outbox
	WHERE status = ? AND direction = ?`
	args := []interface{}{string(types.StatusPending), string(types.DirectionLocalToRemote)}

	if len(excluded) > 0 {
		query += " AND domain NOT IN (?" + strings.Repeat(", ?", len(excluded)-1) + ")"
		for _, d := range excluded {
			args = append(args, string(d))
		}
	}
	query += " ORDER BY created_at ASC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox entries: %w", err)
	}
	defer rows.Close()

	return scanOutboxRows(rows)
}

// MarkSynced transitions an entry to its terminal synced state.
// Re-marking a terminal entry is a no-op overwrite, never an error.
func (s *Store) MarkSynced(ctx context.Context, entryID int64, now time.Time) error {
	query := `UPDATE outbox SET status = ?, error_message = NULL, synced_at = ? WHERE id = ?`
	if _, err := s.conn.ExecContext(ctx, query, string(types.StatusSynced), formatTime(now), entryID); err != nil {
		return fmt.Errorf("failed to mark outbox entry %d synced: %w", entryID, err)
	}
	return nil
}

// MarkFailed transitions an entry to its terminal failed state with the
// error message recorded for diagnostics. Idempotent.
func (s *Store) MarkFailed(ctx context.Context, entryID int64, errMsg string) error {
	query := `UPDATE outbox SET status = ?, error_message = ? WHERE id = ?`
	if _, err := s.conn.ExecContext(ctx, query, string(types.StatusFailed), errMsg, entryID); err != nil {
		return fmt.Errorf("failed to mark outbox entry %d failed: %w", entryID, err)
	}
	return nil
}

// OutboxFilter narrows ListOutbox results. Zero values mean "any".
type OutboxFilter struct {
	Domain types.Domain
	Status types.SyncStatus
	Limit  int
}

// ListOutbox returns ledger entries for diagnostic inspection, newest first.
func (s *Store) ListOutbox(ctx context.Context, f OutboxFilter) ([]*types.OutboxEntry, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Domain != "" {
		conds = append(conds, "domain = ?")
		args = append(args, string(f.Domain))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `
	SELECT id, domain, direction, local_id, remote_id, action, status, error_message, created_at, synced_at
	FROM outbox`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox entries: %w", err)
	}
	defer rows.Close()

	return scanOutboxRows(rows)
}

// CountOutboxByStatus returns entry counts keyed by status, for the status
// command and the dashboard.
func (s *Store) CountOutboxByStatus(ctx context.Context) (map[types.SyncStatus]int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outbox count: %w", err)
		}
		counts[types.SyncStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanOutboxRows(rows *sql.Rows) ([]*types.OutboxEntry, error) {
	var entries []*types.OutboxEntry
	for rows.Next() {
		var (
			e         types.OutboxEntry
			domain    string
			direction string
			localID   sql.NullInt64
			remoteID  sql.NullString
			action    string
			status    string
			errMsg    sql.NullString
			createdAt string
			syncedAt  sql.NullString
		)
		if err := rows.Scan(&e.ID, &domain, &direction, &localID, &remoteID,
			&action, &status, &errMsg, &createdAt, &syncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}

		e.Domain = types.Domain(domain)
		e.Direction = types.SyncDirection(direction)
		e.LocalID = nullInt64ToPtr(localID)
		e.RemoteID = nullStringToPtr(remoteID)
		e.Action = types.SyncAction(action)
		e.Status = types.SyncStatus(status)
		e.ErrorMessage = nullStringToPtr(errMsg)

		created, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse outbox created_at: %w", err)
		}
		e.CreatedAt = created
		e.SyncedAt = nullStringToTime(syncedAt)

		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
