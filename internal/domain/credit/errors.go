package credit

import "errors"

var (
	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInsufficientBalance is returned when available credits don't cover the amount
	ErrInsufficientBalance = errors.New("insufficient available credits")

	// ErrBelowMinimum is returned when a withdrawal is below the configured minimum
	ErrBelowMinimum = errors.New("withdrawal amount below minimum")

	// ErrReferenceConflict is returned when a reference was already applied with a different amount
	ErrReferenceConflict = errors.New("reference conflicts with different amount")

	ErrInternal = errors.New("internal error")
)
