package availability

import (
	"fmt"

	"github.com/kirinyoku/venuebook/internal/domain"
)

var ErrVenueNotFound = fmt.Errorf("venue %w", domain.ErrNotFound)
