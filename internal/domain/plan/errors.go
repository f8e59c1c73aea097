package plan

import "errors"

var (
	ErrNotFound = errors.New("plan not found")
	ErrInactive = errors.New("plan is not active")
)
