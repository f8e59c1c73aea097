package user

import "errors"

var (
	ErrNotFound       = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrCodeNotFound   = errors.New("referral code not found")
	ErrDuplicateCode  = errors.New("referral code already in use")
	ErrInvalidUserRow = errors.New("invalid user row")
)
