package services

import (
	"errors"
	"fmt"

	"marketplace-server/repository"
)

// Error kinds returned by the booking core. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAlreadySigned     = errors.New("already signed")
	ErrDuplicatePayment  = errors.New("duplicate payment")
	ErrContractExists    = errors.New("contract exists")
	ErrValidation        = errors.New("validation error")
)

// notFound translates a store miss into ErrNotFound and leaves other errors alone.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
