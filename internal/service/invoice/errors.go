package invoice

import (
	"fmt"

	"github.com/kirinyoku/venuebook/internal/domain"
)

var (
	ErrInvoiceNotFound   = fmt.Errorf("invoice %w", domain.ErrNotFound)
	ErrNotAllowed        = fmt.Errorf("invoice access %w", domain.ErrUnauthorized)
	ErrInvalidTransition = fmt.Errorf("invoice status: %w", domain.ErrInvalidTransition)
)
