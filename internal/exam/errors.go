package exam

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match with errors.Is; anything else is a generic failure.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")
)

// ErrAttemptExists is returned by attempt stores when (exam, student) already
// has a row.
var ErrAttemptExists = fmt.Errorf("attempt already exists: %w", ErrConflict)

// ConflictError is returned by Start when the student already submitted the
// exam. It carries the stored result so the caller can show it.
type ConflictError struct {
	Result Result
}

func (e *ConflictError) Error() string {
	return "exam already submitted by this student"
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Errorf wraps kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
