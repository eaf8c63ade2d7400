package store

import "errors"

// ErrNotFound is returned when a lookup by local or remote identifier
// matches no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateRemoteID is returned when a write would bind a remote
// identifier that is already linked to another record of the same domain.
var ErrDuplicateRemoteID = errors.New("remote id already linked to another record")

// ErrValidation wraps synchronous input errors (missing required field,
// out-of-range value). These are local errors and are never retried.
var ErrValidation = errors.New("validation failed")
