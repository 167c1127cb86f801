package storage

import (
	"errors"
	"fmt"
)

// Errors returned by settings operations.
var (
	// ErrOperationNotSupported indicates the active backend has no native
	// equivalent for the requested operation. It is never retried.
	ErrOperationNotSupported = errors.New("operation not supported")

	// ErrContainerNotFound indicates CreateContainer was called with
	// DispositionExisting for a container that does not exist.
	ErrContainerNotFound = errors.New("container not found")

	// ErrInvalidArgument indicates an argument or argument combination the
	// active backend structurally disallows.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTypeMismatch indicates a stored value could not be recovered as the
	// requested kind.
	ErrTypeMismatch = errors.New("type mismatch")
)

// OpError records a failed settings operation and the backend it ran on.
type OpError struct {
	// Op is the facade operation, e.g. "set" or "createContainer".
	Op string
	// Backend is the backend name.
	Backend string
	// Key is the settings key or container name involved, if any.
	Key string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// TypeError is returned when a value is read as a kind it does not hold.
type TypeError struct {
	// Expected is the requested kind.
	Expected Kind
	// Actual is the stored kind.
	Actual Kind
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error: expected %s, got %s", e.Expected, e.Actual)
}

// Is implements error matching for TypeError.
func (e *TypeError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func wrapOp(op, backend, key string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, Backend: backend, Key: key, Err: err}
}
