package configstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the storage location does not exist
	ErrNotFound = errors.New("config not found")
	// ErrMalformedConfig matches every MalformedError
	ErrMalformedConfig = errors.New("malformed config")
)

// MalformedError describes why a persisted batch could not be loaded
type MalformedError struct {
	// Index is the 0-based record position, -1 for document level problems
	Index  int
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("malformed config: %s", e.Reason)
	case e.Field == "":
		return fmt.Sprintf("malformed config: session %d: %s", e.Index+1, e.Reason)
	default:
		return fmt.Sprintf("malformed config: session %d: %s: %s", e.Index+1, e.Field, e.Reason)
	}
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedConfig }

func malformed(index int, field, reason string) error {
	return &MalformedError{Index: index, Field: field, Reason: reason}
}
