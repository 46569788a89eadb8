// Package apperr defines the error kinds surfaced by the ingestion and
// aggregation services. The HTTP layer maps them to response codes:
// validation errors are the client's fault, storage errors are ours.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
	ErrNotFound   = errors.New("not found")
)

// Validationf wraps a formatted message with ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Storagef wraps a formatted message with ErrStorage.
func Storagef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStorage, fmt.Sprintf(format, args...))
}

// NotFoundf wraps a formatted message with ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsStorage(err error) bool    { return errors.Is(err, ErrStorage) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
