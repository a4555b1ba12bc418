package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates(t *testing.T) {
	transition := fmt.Errorf("finish: %w", InvalidTransitionError{Action: "finish", From: "completed"})
	assert.True(t, IsInvalidTransition(transition))
	assert.False(t, IsValidation(transition))
	assert.Contains(t, transition.Error(), `cannot finish booking in status "completed"`)

	validation := ValidationError{Field: "reason", Msg: "is required"}
	assert.True(t, IsValidation(validation))
	assert.Equal(t, "reason: is required", validation.Error())

	denied := PermissionDeniedError{Action: "finish", Role: "staff_traffic"}
	assert.True(t, IsPermissionDenied(denied))

	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", ErrNotFound)))
	assert.True(t, IsNotFound(ErrAccountNotFound))
}

func TestInvalidTransitionWrapsConflict(t *testing.T) {
	err := InvalidTransitionError{Action: "cancel", From: "confirmed", Msg: "booking was modified", Err: ErrConcurrentModification}
	assert.True(t, errors.Is(err, ErrConcurrentModification))
}

func TestDependencyFailureError(t *testing.T) {
	ledgerErr := errors.New("ledger down")
	err := DependencyFailureError{
		BookingID: 7,
		Status:    "completed",
		Failures: []StepFailure{
			{Step: "ledger", Err: ledgerErr},
			{Step: "vehicle-availability", Err: errors.New("registry timeout")},
		},
	}

	assert.True(t, IsDependencyFailure(fmt.Errorf("finish: %w", err)))
	assert.True(t, errors.Is(err, ledgerErr))
	assert.Equal(t, []string{"ledger", "vehicle-availability"}, err.Steps())
	assert.Contains(t, err.Error(), "booking 7 is completed")
}
