package document

import "errors"

var (
	// ErrNotFound indicates the document doesn't exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidTransition indicates a workflow operation illegal for the
	// document's current state.
	ErrInvalidTransition = errors.New("invalid workflow transition")
	// ErrLockConflict indicates the document is locked by another session.
	ErrLockConflict = errors.New("document locked by another session")
	// ErrUnknownMachine indicates the machine code is not registered.
	ErrUnknownMachine = errors.New("machine not registered")
	// ErrUnknownGroup indicates the group code is not registered under the machine.
	ErrUnknownGroup = errors.New("group not registered")
	// ErrInvalidInput indicates invalid input for document operations.
	ErrInvalidInput = errors.New("invalid document input")
	// ErrFileOutsideArchive indicates a linked file path outside the
	// document's current archive directory.
	ErrFileOutsideArchive = errors.New("linked file outside archive path")
)
