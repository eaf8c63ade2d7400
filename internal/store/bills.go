package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stridehq/stride/internal/types"
)

// BillParams holds the fields for creating a bill.
type BillParams struct {
	Name        string
	AmountCents int64
	DueAt       *time.Time
	AutoPay     bool
	RemoteID    *string
}

// BillUpdate holds a partial update; nil fields are left unchanged.
type BillUpdate struct {
	Name        *string
	AmountCents *int64
	DueAt       *time.Time
	Paid        *bool
	PaidAt      *time.Time
	AutoPay     *bool
}

// BillFilter narrows ListBills results.
type BillFilter struct {
	Unpaid    bool
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// CreateBill inserts a new bill paired with a pending outbox create entry.
func (s *Store) CreateBill(ctx context.Context, p BillParams) (*types.Bill, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.AmountCents < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative (got %d)", ErrValidation, p.AmountCents)
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
	INSERT INTO bills (remote_id, name, amount_cents, due_at, auto_pay, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		remoteID, p.Name, p.AmountCents, timeToNullString(p.DueAt),
		boolToInt(p.AutoPay), formatTime(now), formatTime(now))
	if err != nil {
		return nil, mapConstraintErr(err, "failed to insert bill")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get bill id: %w", err)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainBill,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		RemoteID:  p.RemoteID,
		Action:    types.ActionCreate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bill create: %w", err)
	}

	return &types.Bill{
		ID:          id,
		RemoteID:    p.RemoteID,
		Name:        p.Name,
		AmountCents: p.AmountCents,
		DueAt:       p.DueAt,
		AutoPay:     p.AutoPay,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateBill merges the provided fields and enqueues an outbox update entry.
func (s *Store) UpdateBill(ctx context.Context, id int64, u BillUpdate) (*types.Bill, error) {
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
	if u.AmountCents != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, *u.AmountCents)
	}
	if u.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, formatTime(*u.DueAt))
	}
	if u.Paid != nil {
		sets = append(sets, "paid = ?")
		args = append(args, boolToInt(*u.Paid))
	}
	if u.PaidAt != nil {
		sets = append(sets, "paid_at = ?")
		args = append(args, formatTime(*u.PaidAt))
	}
	if u.AutoPay != nil {
		sets = append(sets, "auto_pay = ?")
		args = append(args, boolToInt(*u.AutoPay))
	}
	args = append(args, id)

	res, err := tx.ExecContext(ctx, "UPDATE bills SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update bill %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("bill %d: %w", id, ErrNotFound)
	}

	if err := enqueueOutboxTx(ctx, tx, NewOutboxEntry{
		Domain:    types.DomainBill,
		Direction: types.DirectionLocalToRemote,
		LocalID:   &id,
		Action:    types.ActionUpdate,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bill update: %w", err)
	}

	return s.GetBill(ctx, id)
}

// GetBill returns a bill by local identifier.
func (s *Store) GetBill(ctx context.Context, id int64) (*types.Bill, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, name, amount_cents, due_at, paid, paid_at, auto_pay, created_at, updated_at, synced_at
	FROM bills WHERE id = ?`, id)
	return scanBill(row)
}

// ListBills is a pure query with no synchronization side effects.
func (s *Store) ListBills(ctx context.Context, f BillFilter) ([]*types.Bill, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Unpaid {
		conds = append(conds, "paid = 0")
	}
	if f.DueBefore != nil {
		conds = append(conds, "due_at IS NOT NULL AND due_at < ?")
		args = append(args, formatTime(*f.DueBefore))
	}

	query := `
	SELECT id, remote_id, name, amount_cents, due_at, paid, paid_at, auto_pay, created_at, updated_at, synced_at
	FROM bills`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY due_at ASC, created_at ASC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []*types.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func scanBill(row rowScanner) (*types.Bill, error) {
	var (
		b         types.Bill
		remoteID  sql.NullString
		dueAt     sql.NullString
		paid      int
		paidAt    sql.NullString
		autoPay   int
		createdAt string
		updatedAt string
		syncedAt  sql.NullString
	)
	err := row.Scan(&b.ID, &remoteID, &b.Name, &b.AmountCents, &dueAt,
		&paid, &paidAt, &autoPay, &createdAt, &updatedAt, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan bill: %w", err)
	}

	b.RemoteID = nullStringToPtr(remoteID)
	b.DueAt = nullStringToTime(dueAt)
	b.Paid = paid != 0
	b.PaidAt = nullStringToTime(paidAt)
	b.AutoPay = autoPay != 0
	b.SyncedAt = nullStringToTime(syncedAt)

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bill created_at: %w", err)
	}
	b.CreatedAt = created

	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bill updated_at: %w", err)
	}
	b.UpdatedAt = updated

	return &b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
