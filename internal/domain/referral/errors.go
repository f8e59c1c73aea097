package referral

import "errors"

var (
	ErrNotFound       = errors.New("commission not found")
	ErrInvalidPercent = errors.New("commission percent out of range")
	ErrInvalidAmount  = errors.New("purchase amount must be greater than zero")
	ErrInternal       = errors.New("internal error")
)
