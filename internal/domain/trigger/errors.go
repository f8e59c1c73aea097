package trigger

import "errors"

var (
	ErrNotFound = errors.New("trigger not found")
	ErrInternal = errors.New("internal error")
)
