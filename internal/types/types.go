// Package types defines the domain entities and sync ledger records shared
// across the store, the sync engine, and the CLI.
package types

import (
	"fmt"
	"time"
)

// Domain identifies one of the record collections kept in sync with the
// remote system of record.
type Domain string

const (
	DomainTask    Domain = "task"
	DomainBill    Domain = "bill"
	DomainProject Domain = "project"
	DomainGoal    Domain = "goal"
	DomainHabit   Domain = "habit"
)

// AllDomains lists every domain in a stable order.
var AllDomains = []Domain{DomainTask, DomainBill, DomainProject, DomainGoal, DomainHabit}

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	switch d {
	case DomainTask, DomainBill, DomainProject, DomainGoal, DomainHabit:
		return true
	}
	return false
}

// ParseDomain converts a string (e.g. a CLI argument) into a Domain.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown domain %q", s)
	}
	return d, nil
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusAchieved  GoalStatus = "achieved"
	GoalStatusAbandoned GoalStatus = "abandoned"
)

// Task is a single actionable item.
type Task struct {
	ID          int64      `json:"id"`
	RemoteID    *string    `json:"remote_id,omitempty"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    int        `json:"priority"` // 0-4 (0=critical, 4=backlog)
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// Bill is a recurring or one-off payable.
type Bill struct {
	ID          int64      `json:"id"`
	RemoteID    *string    `json:"remote_id,omitempty"`
	Name        string     `json:"name"`
	AmountCents int64      `json:"amount_cents"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Paid        bool       `json:"paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	AutoPay     bool       `json:"auto_pay"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// Project groups work toward a deliverable.
type Project struct {
	ID        int64         `json:"id"`
	RemoteID  *string       `json:"remote_id,omitempty"`
	Name      string        `json:"name"`
	Status    ProjectStatus `json:"status"`
	Progress  int           `json:"progress"` // 0-100
	StartedAt *time.Time    `json:"started_at,omitempty"`
	TargetAt  *time.Time    `json:"target_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	SyncedAt  *time.Time    `json:"synced_at,omitempty"`
}

// Goal is a longer-horizon objective with a progress percentage.
type Goal struct {
	ID        int64      `json:"id"`
	RemoteID  *string    `json:"remote_id,omitempty"`
	Title     string     `json:"title"`
	Status    GoalStatus `json:"status"`
	Progress  int        `json:"progress"` // 0-100
	TargetAt  *time.Time `json:"target_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
}

// Habit is a recurring practice with a completion streak.
type Habit struct {
	ID              int64      `json:"id"`
	RemoteID        *string    `json:"remote_id,omitempty"`
	Name            string     `json:"name"`
	Streak          int        `json:"streak"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	SyncedAt        *time.Time `json:"synced_at,omitempty"`
}

// SyncDirection says which way an outbox entry travels.
type SyncDirection string

const (
	DirectionLocalToRemote SyncDirection = "local_to_remote"
	DirectionRemoteToLocal SyncDirection = "remote_to_local"
)

// SyncAction is the kind of mutation an outbox entry represents.
type SyncAction string

const (
	ActionCreate SyncAction = "create"
	ActionUpdate SyncAction = "update"
	ActionDelete SyncAction = "delete"
)

// SyncStatus is the lifecycle state of an outbox entry.
//
// StatusConflict is reserved in the schema but never set by the engine;
// last-write-wins resolves silently.
type SyncStatus string

const (
	StatusPending  SyncStatus = "pending"
	StatusSynced   SyncStatus = "synced"
	StatusFailed   SyncStatus = "failed"
	StatusConflict SyncStatus = "conflict"
)

// OutboxEntry is one row of the sync ledger. Outgoing entries are created in
// the same transaction as the entity write they describe; incoming entries
// are audit records appended by the pull worker.
type OutboxEntry struct {
	ID           int64         `json:"id"`
	Domain       Domain        `json:"domain"`
	Direction    SyncDirection `json:"direction"`
	LocalID      *int64        `json:"local_id,omitempty"`
	RemoteID     *string       `json:"remote_id,omitempty"`
	Action       SyncAction    `json:"action"`
	Status       SyncStatus    `json:"status"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	SyncedAt     *time.Time    `json:"synced_at,omitempty"`
}
