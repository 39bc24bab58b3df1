package repository

import (
	"errors"

	"github.com/okian/stride/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound      = model.ErrSessionNotFound
	ErrAlreadyExists = model.ErrDuplicateEvent
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrMissingDSN    = errors.New("store dsn required")
)
