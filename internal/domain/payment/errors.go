package payment

import "errors"

var (
	ErrNotFound       = errors.New("payment not found")
	ErrInvalidPayload = errors.New("invalid webhook payload")
	ErrUnauthorized   = errors.New("webhook authentication failed")
	ErrInternal       = errors.New("internal error")
)
