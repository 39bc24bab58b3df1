package model

import (
	"errors"

	"github.com/okian/stride/pkg/errkind"
)

// Error kinds shared across the pipeline.
var (
	// ErrValidation marks client-caused input failures.
	ErrValidation = errors.New("validation failed")
	// ErrStorage marks event store failures.
	ErrStorage = errors.New("storage failure")
)

// Store outcomes the pipeline branches on.
var (
	// ErrDuplicateEvent reports a create-only write whose key is taken.
	ErrDuplicateEvent = errors.New("event already exists")
	// ErrSessionNotFound reports a missing session summary.
	ErrSessionNotFound = errors.New("session not found")
)

// Validation reasons.
var (
	ErrMissingIdentifier = errors.New("missing identifier")
	ErrInvalidEventType  = errors.New("invalid event type")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrFutureTimestamp   = errors.New("timestamp too far in the future")
	ErrInvalidPayload    = errors.New("invalid payload")
)

// NewValidationError tags reason as a validation failure of op.
func NewValidationError(op string, reason error) error {
	return errkind.WrapKind(op, ErrValidation, reason)
}

// NewStorageError tags err as a storage failure of op.
func NewStorageError(op string, err error) error {
	return errkind.WrapKind(op, ErrStorage, err)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsStorage reports whether err is a storage failure.
func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }
