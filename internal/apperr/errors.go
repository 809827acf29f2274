// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyExists      = errors.New("already exists")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
)

// Validation wraps err so that errors.Is(result, ErrValidation) holds
// while keeping the underlying message.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrValidation, err)
}
