package booking

import (
	"fmt"

	"github.com/kirinyoku/venuebook/internal/domain"
)

var (
	ErrBookingNotFound   = fmt.Errorf("booking %w", domain.ErrNotFound)
	ErrVenueNotFound     = fmt.Errorf("venue %w", domain.ErrNotFound)
	ErrUnknownService    = fmt.Errorf("%w: unknown service", domain.ErrValidation)
	ErrSlotTaken         = fmt.Errorf("requested window %w", domain.ErrSlotTaken)
	ErrNotAllowed        = fmt.Errorf("booking access %w", domain.ErrUnauthorized)
	ErrInvalidTransition = fmt.Errorf("booking status: %w", domain.ErrInvalidTransition)
)
