package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stridehq/stride/internal/types"
)

// domainTables maps each domain to its entity table.
var domainTables = map[types.Domain]string{
	types.DomainTask:    "tasks",
	types.DomainBill:    "bills",
	types.DomainProject: "projects",
	types.DomainGoal:    "goals",
	types.DomainHabit:   "habits",
}

func tableFor(domain types.Domain) (string, error) {
	t, ok := domainTables[domain]
	if !ok {
		return "", fmt.Errorf("unknown domain %q", domain)
	}
	return t, nil
}

// SyncRef is the pull worker's view of a local record: enough to decide
// tracked-vs-untracked and run the last-write-wins comparison.
type SyncRef struct {
	LocalID  int64
	SyncedAt *time.Time
}

// FindByRemoteID returns the local record bound to a remote identifier, or
// ErrNotFound if the remote record is untracked.
func (s *Store) FindByRemoteID(ctx context.Context, domain types.Domain, remoteID string) (*SyncRef, error) {
	table, err := tableFor(domain)
	if err != nil {
		return nil, err
	}

	var (
		id       int64
		syncedAt sql.NullString
	)
	row := s.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, synced_at FROM %s WHERE remote_id = ?`, table), remoteID)
	if err := row.Scan(&id, &syncedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up %s by remote id: %w", domain, err)
	}

	return &SyncRef{LocalID: id, SyncedAt: nullStringToTime(syncedAt)}, nil
}

// PushSnapshot is the push worker's view of a local record at drain time:
// the current remote linkage plus the payload fields to send.
type PushSnapshot struct {
	RemoteID *string
	Fields   map[string]interface{}
}

// SnapshotForPush re-reads the entity and builds its remote payload. The
// push worker calls this per entry, per attempt, so a create whose linkage
// was persisted by an earlier attempt is visible as an existing RemoteID.
func (s *Store) SnapshotForPush(ctx context.Context, domain types.Domain, localID int64) (*PushSnapshot, error) {
	switch domain {
	case types.DomainTask:
		t, err := s.GetTask(ctx, localID)
		if err != nil {
			return nil, err
		}
		fields := map[string]interface{}{
			"title":    t.Title,
			"notes":    t.Notes,
			"status":   string(t.Status),
			"priority": t.Priority,
		}
		putTimeField(fields, "due_at", t.DueAt)
		putTimeField(fields, "completed_at", t.CompletedAt)
		return &PushSnapshot{RemoteID: t.RemoteID, Fields: fields}, nil

	case types.DomainBill:
		b, err := s.GetBill(ctx, localID)
		if err != nil {
			return nil, err
		}
		fields := map[string]interface{}{
			"name":         b.Name,
			"amount_cents": b.AmountCents,
			"paid":         b.Paid,
			"auto_pay":     b.AutoPay,
		}
		putTimeField(fields, "due_at", b.DueAt)
		putTimeField(fields, "paid_at", b.PaidAt)
		return &PushSnapshot{RemoteID: b.RemoteID, Fields: fields}, nil

	case types.DomainProject:
		p, err := s.GetProject(ctx, localID)
		if err != nil {
			return nil, err
		}
		fields := map[string]interface{}{
			"name":     p.Name,
			"status":   string(p.Status),
			"progress": p.Progress,
		}
		putTimeField(fields, "started_at", p.StartedAt)
		putTimeField(fields, "target_at", p.TargetAt)
		return &PushSnapshot{RemoteID: p.RemoteID, Fields: fields}, nil

	case types.DomainGoal:
		g, err := s.GetGoal(ctx, localID)
		if err != nil {
			return nil, err
		}
		fields := map[string]interface{}{
			"title":    g.Title,
			"status":   string(g.Status),
			"progress": g.Progress,
		}
		putTimeField(fields, "target_at", g.TargetAt)
		return &PushSnapshot{RemoteID: g.RemoteID, Fields: fields}, nil

	case types.DomainHabit:
		h, err := s.GetHabit(ctx, localID)
		if err != nil {
			return nil, err
		}
		fields := map[string]interface{}{
			"name":   h.Name,
			"streak": h.Streak,
			"active": h.Active,
		}
		putTimeField(fields, "last_completed_at", h.LastCompletedAt)
		return &PushSnapshot{RemoteID: h.RemoteID, Fields: fields}, nil
	}

	return nil, fmt.Errorf("unknown domain %q", domain)
}

// SetRemoteLinkage binds a freshly created remote identifier to a local
// record and stamps synced_at. Only the push worker calls this.
func (s *Store) SetRemoteLinkage(ctx context.Context, domain types.Domain, localID int64, remoteID string, now time.Time) error {
	table, err := tableFor(domain)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	UPDATE %s SET
		remote_id = ?,
		synced_at = CASE WHEN synced_at IS NULL OR synced_at < ?2 THEN ?2 ELSE synced_at END
	WHERE id = ?3`, table)

	res, err := s.conn.ExecContext(ctx, query, remoteID, formatTime(now), localID)
	if err != nil {
		return mapConstraintErr(err, fmt.Sprintf("failed to set remote linkage for %s %d", domain, localID))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %d: %w", domain, localID, ErrNotFound)
	}
	return nil
}

// StampSynced advances synced_at after a successful push of an existing
// record. The guard keeps synced_at monotonically non-decreasing even when
// the push and pull workers race on the same row.
func (s *Store) StampSynced(ctx context.Context, domain types.Domain, localID int64, now time.Time) error {
	table, err := tableFor(domain)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	UPDATE %s SET
		synced_at = CASE WHEN synced_at IS NULL OR synced_at < ?1 THEN ?1 ELSE synced_at END
	WHERE id = ?2`, table)

	res, err := s.conn.ExecContext(ctx, query, formatTime(now), localID)
	if err != nil {
		return fmt.Errorf("failed to stamp synced_at for %s %d: %w", domain, localID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %d: %w", domain, localID, ErrNotFound)
	}
	return nil
}

// ApplyRemote overwrites the mapped local fields with remote values after
// the pull worker's last-write-wins check, stamping updated_at and
// synced_at. Unknown field keys are ignored; the remote system may carry
// properties this store does not track.
func (s *Store) ApplyRemote(ctx context.Context, domain types.Domain, localID int64, fields map[string]interface{}, now time.Time) error {
	table, err := tableFor(domain)
	if err != nil {
		return err
	}

	cols := remoteColumns[domain]
	sets := "updated_at = ?, synced_at = CASE WHEN synced_at IS NULL OR synced_at < ? THEN ? ELSE synced_at END"
	args := []interface{}{formatTime(now), formatTime(now), formatTime(now)}

	for _, col := range cols {
		v, ok := fields[col.key]
		if !ok {
			continue
		}
		sv, err := col.convert(v)
		if err != nil {
			return fmt.Errorf("%s field %q: %w", domain, col.key, err)
		}
		sets += ", " + col.column + " = ?"
		args = append(args, sv)
	}
	args = append(args, localID)

	res, err := s.conn.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, sets), args...)
	if err != nil {
		return fmt.Errorf("failed to apply remote fields to %s %d: %w", domain, localID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %d: %w", domain, localID, ErrNotFound)
	}
	return nil
}

func putTimeField(fields map[string]interface{}, key string, t *time.Time) {
	if t != nil {
		fields[key] = formatTime(*t)
	}
}

// remoteColumn maps one remote payload key onto a local column with a value
// converter. JSON decoding hands us strings, float64s, and bools.
type remoteColumn struct {
	key     string
	column  string
	convert func(interface{}) (interface{}, error)
}

var remoteColumns = map[types.Domain][]remoteColumn{
	types.DomainTask: {
		{"title", "title", asString},
		{"notes", "notes", asString},
		{"status", "status", asString},
		{"priority", "priority", asInt},
		{"due_at", "due_at", asTimeString},
		{"completed_at", "completed_at", asTimeString},
	},
	types.DomainBill: {
		{"name", "name", asString},
		{"amount_cents", "amount_cents", asInt},
		{"paid", "paid", asBoolInt},
		{"auto_pay", "auto_pay", asBoolInt},
		{"due_at", "due_at", asTimeString},
		{"paid_at", "paid_at", asTimeString},
	},
	types.DomainProject: {
		{"name", "name", asString},
		{"status", "status", asString},
		{"progress", "progress", asInt},
		{"started_at", "started_at", asTimeString},
		{"target_at", "target_at", asTimeString},
	},
	types.DomainGoal: {
		{"title", "title", asString},
		{"status", "status", asString},
		{"progress", "progress", asInt},
		{"target_at", "target_at", asTimeString},
	},
	types.DomainHabit: {
		{"name", "name", asString},
		{"streak", "streak", asInt},
		{"active", "active", asBoolInt},
		{"last_completed_at", "last_completed_at", asTimeString},
	},
}

func asString(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asInt(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return nil, fmt.Errorf("expected number, got %T", v)
}

func asBoolInt(v interface{}) (interface{}, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected bool, got %T", v)
	}
	return boolToInt(b), nil
}

func asTimeString(v interface{}) (interface{}, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected timestamp string, got %T", v)
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return formatTime(t), nil
}
