// Package apperr holds the sentinel errors shared by the store, the HTTP layer
// and the editor engine.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrTransient marks a storage or transport failure that may succeed on retry.
	ErrTransient = errors.New("transient store error")
)
