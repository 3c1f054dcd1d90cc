package index

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderMismatch means the index was built with a different
	// embedding provider or model than the one used to open it.
	ErrProviderMismatch = errors.New("embedding provider does not match index")
	// ErrDimensionMismatch means a query vector has a different length than
	// the indexed vectors.
	ErrDimensionMismatch = errors.New("embedding dimension does not match index")
)

// IndexBuildError is returned when an index cannot be built.
type IndexBuildError struct {
	Message string
	Cause   error
}

func (e *IndexBuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("index build failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("index build failed: %s", e.Message)
}

func (e *IndexBuildError) Unwrap() error {
	return e.Cause
}

// IndexNotFoundError is returned when no usable index exists at Location.
type IndexNotFoundError struct {
	Location string
	Cause    error
}

func (e *IndexNotFoundError) Error() string {
	msg := fmt.Sprintf("no index found at %s", e.Location)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg + " (run the build command first)"
}

func (e *IndexNotFoundError) Unwrap() error {
	return e.Cause
}
