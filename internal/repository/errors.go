package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrScopeExhausted is returned when a counter scope has no values left
	// in its configured direction. Fatal for that scope; never clamped.
	ErrScopeExhausted = errors.New("counter scope exhausted")

	// ErrDuplicateCode is returned when inserting a document whose code
	// already exists. This indicates external tampering or a logic defect.
	ErrDuplicateCode = errors.New("duplicate document code")

	// ErrLockHeld is returned when a lock is held by another session
	ErrLockHeld = errors.New("lock held by another session")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
