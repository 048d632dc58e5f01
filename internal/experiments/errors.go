package experiments

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no experiment with the id is owned by the user.
	ErrNotFound = errors.New("experiments: not found")
	// ErrPersistence is matched by every storage failure.
	ErrPersistence = errors.New("experiments: persistence failure")
)

// StoreError wraps a storage failure with the failing operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("experiments: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches ErrPersistence.
func (e *StoreError) Is(target error) bool { return target == ErrPersistence }

// Code returns the log error code.
func (e *StoreError) Code() string { return "PERSISTENCE" }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
