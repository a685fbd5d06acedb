package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrGuardRejection is returned when a mutation would break a structural
	// invariant. The working copy is left unchanged.
	ErrGuardRejection = errors.New("operation rejected: a page must keep at least one block")

	// ErrSaveInProgress is returned when a save for the same page is already running.
	ErrSaveInProgress = errors.New("a save for this page is already in progress")

	ErrInvalidBlock = errors.New("invalid block")
)

// LoadFailure means a page could not be fetched or its stored data is malformed.
type LoadFailure struct {
	PageID string
	Err    error
}

func (e *LoadFailure) Error() string {
	return fmt.Sprintf("load page %s: %v", e.PageID, e.Err)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// SaveFailure means the store rejected a write. The working copy is retained.
type SaveFailure struct {
	PageID string
	Err    error
}

func (e *SaveFailure) Error() string {
	return fmt.Sprintf("save page %s: %v", e.PageID, e.Err)
}

func (e *SaveFailure) Unwrap() error { return e.Err }
