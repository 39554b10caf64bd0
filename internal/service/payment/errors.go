package payment

import (
	"fmt"

	"github.com/kirinyoku/venuebook/internal/domain"
)

var (
	ErrBookingNotFound        = fmt.Errorf("booking %w", domain.ErrNotFound)
	ErrPaymentNotFound        = fmt.Errorf("payment %w", domain.ErrNotFound)
	ErrPaymentRequestNotFound = fmt.Errorf("payment request %w", domain.ErrNotFound)
	ErrMethodNotFound         = fmt.Errorf("payment method %w", domain.ErrNotFound)
	ErrInvalidAmount          = fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	ErrOrderMismatch          = fmt.Errorf("%w: gateway order does not belong to this booking", domain.ErrValidation)
	ErrNotAllowed             = fmt.Errorf("payment access %w", domain.ErrUnauthorized)
	ErrInvalidSignature       = fmt.Errorf("payment callback: %w", domain.ErrInvalidSignature)
	ErrInvalidTransition      = fmt.Errorf("payment status: %w", domain.ErrInvalidTransition)
)
