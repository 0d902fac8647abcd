// Package apperr defines the error taxonomy shared by the mutation gateway,
// the public link issuer and the public viewer. Callers test with errors.Is
// against the sentinels and errors.As for field detail.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Sentinels.
var (
	ErrDenied       = errors.New("not permitted")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrStore        = errors.New("temporary failure, try again")
	ErrLinkCreation = errors.New("public link creation failed")
)

// DeniedError is a policy veto. Reason is for logs only and must not be shown
// to the caller.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string        { return "not permitted: " + e.Reason }
func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

// Denied returns a policy veto with the given log reason.
func Denied(reason string) error {
	return &DeniedError{Reason: reason}
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string        { return e.Field + ": " + e.Message }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a validation error for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StoreError is an infrastructure failure. It is surfaced, never retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string        { return e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error        { return e.Err }
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// Store wraps err as a StoreError unless it already belongs to the taxonomy.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// LinkCreationError is the issuer's flavour of StoreError.
type LinkCreationError struct {
	Err error
}

func (e *LinkCreationError) Error() string { return "creating public link: " + e.Err.Error() }
func (e *LinkCreationError) Unwrap() error { return e.Err }

func (e *LinkCreationError) Is(target error) bool {
	return target == ErrLinkCreation || target == ErrStore
}

// LinkCreation wraps err as a LinkCreationError.
func LinkCreation(err error) error {
	if err == nil {
		return nil
	}
	return &LinkCreationError{Err: err}
}

// Classified reports whether err already carries one of the sentinels.
func Classified(err error) bool {
	return errors.Is(err, ErrDenied) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrStore)
}

// IsTimeout reports whether err came from a bounded store call running out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
