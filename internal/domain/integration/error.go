package integration

import "errors"

var (
	ErrNotFound      = errors.New("integration not found")
	ErrInvalidConfig = errors.New("invalid integration config")
)
