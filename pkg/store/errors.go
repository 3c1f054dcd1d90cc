package store

import "errors"

var (
	// ErrNotFound means no index has been persisted at the location.
	ErrNotFound = errors.New("index not found")
	// ErrCorrupt means an index exists but cannot be read back.
	ErrCorrupt = errors.New("index is corrupt")
)
