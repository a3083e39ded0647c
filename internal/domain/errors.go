package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrDuplicateID     = errors.New("id already exists")
	ErrDuplicateEmail  = errors.New("email already exists")
	ErrUnsupportedKind = errors.New("unsupported database type")
	ErrWrongBackend    = errors.New("operation not supported for configured backend")
	ErrInvalidFilename = errors.New("invalid backup filename")
	ErrLockHeld        = errors.New("database lock already held")
)
