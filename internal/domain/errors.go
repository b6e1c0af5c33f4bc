package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrOperationFailed = errors.New("operation failed")
)

var (
	ErrReservationNotFound   = fmt.Errorf("reservation %w", ErrNotFound)
	ErrLoanNotFound          = fmt.Errorf("loan %w", ErrNotFound)
	ErrUserNotFound          = fmt.Errorf("user %w", ErrNotFound)
	ErrDeviceNotFound        = fmt.Errorf("device %w", ErrNotFound)
	ErrReservationNotPending = fmt.Errorf("%w: reservation is not pending", ErrValidation)
	ErrLoanAlreadyReturned   = fmt.Errorf("%w: loan already returned", ErrValidation)
	ErrIDRequired            = fmt.Errorf("%w: id is required", ErrValidation)
	ErrAlreadyCollected      = fmt.Errorf("%w: reservation already collected", ErrConflict)
)
