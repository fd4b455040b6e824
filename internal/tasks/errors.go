package tasks

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation references an id absent from the store.
	ErrNotFound = errors.New("task not found")
	// ErrAuthenticationRequired is returned when no user namespace is available.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrStorage matches every *StorageError through errors.Is.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps a backend read or write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a *StorageError for op, or returns nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
