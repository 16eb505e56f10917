package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
)

// IdentityError means no actor could be resolved. The caller redirects to
// authentication; the sync engine never recovers from it.
type IdentityError struct {
	Reason string
}

func (e *IdentityError) Error() string {
	return "identity unavailable: " + e.Reason
}

func (e *IdentityError) Unwrap() error { return ErrUnauthenticated }

// DuplicateKeyError reports more than one record for a single key. It is a
// store consistency bug and is never resolved by picking one of the matches.
type DuplicateKeyError struct {
	Key   DocumentKey
	Count int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate records for key %s: found %d", e.Key, e.Count)
}

// HydrationError wraps a failed content fetch.
type HydrationError struct {
	Key DocumentKey
	Err error
}

func (e *HydrationError) Error() string {
	return fmt.Sprintf("hydrate %s: %v", e.Key, e.Err)
}

func (e *HydrationError) Unwrap() error { return e.Err }

// WriteError wraps a failed upsert. It is transient; nothing retries it.
type WriteError struct {
	Key DocumentKey
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
