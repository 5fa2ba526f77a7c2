package store

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDraftExists indicates a pending-draft insert lost an insert race.
	ErrDraftExists = errors.New("draft already exists")
)
