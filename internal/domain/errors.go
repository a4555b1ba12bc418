package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrAccountNotFound        = errors.New("account not found")
)

// InvalidTransitionError is returned when an action is not legal from the current status.
type InvalidTransitionError struct {
	Action string
	From   string
	Msg    string
	Err    error
}

func (e InvalidTransitionError) Error() string {
	base := fmt.Sprintf("cannot %s booking in status %q", e.Action, e.From)
	if e.Action == "" {
		base = "invalid transition"
	}
	if e.Msg != "" {
		return base + ": " + e.Msg
	}
	return base
}

func (e InvalidTransitionError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type PermissionDeniedError struct {
	Action string
	Role   string
	Msg    string
}

func (e PermissionDeniedError) Error() string {
	msg := "permission denied"
	if e.Action != "" {
		msg = fmt.Sprintf("permission denied: role %q may not %s", e.Role, e.Action)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

// StepFailure names a side effect that failed after the status write.
type StepFailure struct {
	Step string
	Err  error
}

// DependencyFailureError is a partial success: the status was written but
// one or more side effects were not. The status write is not reverted.
type DependencyFailureError struct {
	BookingID int64
	Status    string
	Failures  []StepFailure
}

func (e DependencyFailureError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Step, f.Err))
	}
	return fmt.Sprintf("booking %d is %s but side effects failed (%s)", e.BookingID, e.Status, strings.Join(parts, "; "))
}

// Steps returns the names of the failed steps.
func (e DependencyFailureError) Steps() []string {
	steps := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		steps = append(steps, f.Step)
	}
	return steps
}

func (e DependencyFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func IsInvalidTransition(err error) bool {
	var target InvalidTransitionError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsPermissionDenied(err error) bool {
	var target PermissionDeniedError
	return errors.As(err, &target)
}

func IsDependencyFailure(err error) bool {
	var target DependencyFailureError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccountNotFound)
}
