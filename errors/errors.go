// Package errors provides error types and handling for bulk transfer operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a transfer operation error with context about the operation
// that failed. It wraps the underlying storage or filesystem error with
// additional context for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "download", "expand")
	Op string

	// Path is the source or destination path involved (if applicable)
	Path string

	// Err is the underlying error from the store, the filesystem, or this module
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("bulk.%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("bulk.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithPath adds path context to an existing error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewPathError creates a new Error with path context.
func NewPathError(op, path string, err error) *Error {
	return &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// Sentinel errors for common transfer failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrNoMatch indicates that a source specification resolved to no files
	ErrNoMatch = errors.New("bulk: no files matched source")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("bulk: invalid input")

	// ErrChunkTransfer indicates that a chunk exhausted its transfer retries
	ErrChunkTransfer = errors.New("bulk: chunk transfer failed")

	// ErrSizeMismatch indicates that an assembled file's size does not equal
	// its planned size
	ErrSizeMismatch = errors.New("bulk: assembled size mismatch")

	// ErrChunkMisaligned indicates a ranged write at an offset the store's
	// write protocol cannot address
	ErrChunkMisaligned = errors.New("bulk: chunk offset misaligned")

	// ErrJobNotFound indicates that no persisted job exists for a hash
	ErrJobNotFound = errors.New("bulk: job not found")

	// ErrObjectNotFound indicates that the requested remote object does not exist
	ErrObjectNotFound = errors.New("bulk: object not found")

	// ErrRegistryClosed indicates an operation on a closed job registry
	ErrRegistryClosed = errors.New("bulk: registry closed")
)

// IsNoMatch checks if an error indicates that a source spec matched nothing.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsNoMatch(err error) bool {
	return errors.Is(err, ErrNoMatch)
}

// IsChunkTransfer checks if an error indicates an exhausted chunk transfer.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsChunkTransfer(err error) bool {
	return errors.Is(err, ErrChunkTransfer)
}

// IsSizeMismatch checks if an error indicates a failed reassembly postcondition.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsSizeMismatch(err error) bool {
	return errors.Is(err, ErrSizeMismatch)
}

// IsObjectNotFound checks if an error indicates that an object was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
