package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Service packages wrap one of these in their own sentinels so
// callers can match either the precise error or its kind.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrSlotTaken         = errors.New("slot taken")
	ErrGateway           = errors.New("payment gateway error")
	ErrDuplicateCallback = errors.New("duplicate callback")
)

// Invalid returns a validation error carrying a caller-facing message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
