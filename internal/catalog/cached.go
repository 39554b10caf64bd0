package catalog

import (
	"context"
	"time"

	"github.com/kirinyoku/venuebook/internal/domain"
	redisx "github.com/kirinyoku/venuebook/internal/redis"
	redisrepo "github.com/kirinyoku/venuebook/internal/repository/redis"
)

// Cached serves venue, service and user lookups from redis, loading misses
// from the wrapped directory. Owner and provider listings are not cached
// because they gate authorization.
type Cached struct {
	next  Directory
	cache *redisrepo.Cache
	ttl   time.Duration
}

func NewCached(next Directory, cache *redisrepo.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl}
}

func (c *Cached) Venue(ctx context.Context, id string) (*domain.Venue, error) {
	v, err := redisrepo.GetOrSetJSON(ctx, c.cache, redisx.KeyVenue(id), c.ttl,
		func(ctx context.Context) (domain.Venue, error) {
			v, err := c.next.Venue(ctx, id)
			if err != nil {
				return domain.Venue{}, err
			}
			return *v, nil
		})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Cached) Services(ctx context.Context, ids []string) ([]domain.Service, error) {
	out := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		svc, err := redisrepo.GetOrSetJSON(ctx, c.cache, redisx.KeyService(id), c.ttl,
			func(ctx context.Context) (domain.Service, error) {
				found, err := c.next.Services(ctx, []string{id})
				if err != nil {
					return domain.Service{}, err
				}
				return found[0], nil
			})
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

func (c *Cached) User(ctx context.Context, id string) (*domain.User, error) {
	u, err := redisrepo.GetOrSetJSON(ctx, c.cache, redisx.KeyUser(id), c.ttl,
		func(ctx context.Context) (domain.User, error) {
			u, err := c.next.User(ctx, id)
			if err != nil {
				return domain.User{}, err
			}
			return *u, nil
		})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Cached) VenuesByOwner(ctx context.Context, ownerID string) ([]domain.Venue, error) {
	return c.next.VenuesByOwner(ctx, ownerID)
}

func (c *Cached) ServicesByProvider(ctx context.Context, providerID string) ([]domain.Service, error) {
	return c.next.ServicesByProvider(ctx, providerID)
}
