// Package catalog resolves the venues, services and users a booking refers
// to. The ledger never writes to the catalog.
package catalog

import (
	"context"

	"github.com/kirinyoku/venuebook/internal/domain"
)

// Directory looks up catalog entries. Missing ids fail with
// repository.ErrNotFound.
type Directory interface {
	Venue(ctx context.Context, id string) (*domain.Venue, error)
	// Services returns the services in the order of ids; any unknown id
	// fails the whole call.
	Services(ctx context.Context, ids []string) ([]domain.Service, error)
	User(ctx context.Context, id string) (*domain.User, error)
	VenuesByOwner(ctx context.Context, ownerID string) ([]domain.Venue, error)
	ServicesByProvider(ctx context.Context, providerID string) ([]domain.Service, error)
}
