// Package remote is the client boundary to the remote system of record.
//
// The remote system holds the authoritative copy of the user's data and
// enforces a request-rate ceiling of roughly 3 requests/second; callers
// (the sync workers) pace themselves with a fixed inter-call delay and wrap
// every call in the resilience layer. Every failure surfaces as an error,
// never a silent nil, so the circuit breaker can count it.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/stridehq/stride/internal/types"
)

// Record is one record as the remote system reports it.
type Record struct {
	ID           string                 `json:"id"`
	LastEditedAt time.Time              `json:"last_edited_time"`
	Fields       map[string]interface{} `json:"fields"`
}

// Filter narrows Query results. Zero value fetches the full collection.
type Filter struct {
	EditedSince *time.Time
}

// Client is the narrow interface the sync engine consumes. Transport-level
// timeouts are the implementation's concern.
type Client interface {
	// Query fetches the current remote collection for a domain.
	Query(ctx context.Context, domain types.Domain, f Filter) ([]Record, error)

	// Create creates a remote record and returns its remote identifier.
	Create(ctx context.Context, domain types.Domain, fields map[string]interface{}) (string, error)

	// Update overwrites fields on an existing remote record.
	Update(ctx context.Context, remoteID string, fields map[string]interface{}) error
}

// APIError is a non-2xx response from the remote system.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api error: status %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying: timeouts are
// handled by the transport, so this covers rate-limit rejections and
// 5xx-class responses.
func (e *APIError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
