package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
)

// Static is an in-memory Directory used by tests and local runs.
type Static struct {
	mu       sync.RWMutex
	venues   map[string]domain.Venue
	services map[string]domain.Service
	users    map[string]domain.User
}

func NewStatic() *Static {
	return &Static{
		venues:   map[string]domain.Venue{},
		services: map[string]domain.Service{},
		users:    map[string]domain.User{},
	}
}

func (s *Static) PutVenue(v domain.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[v.ID] = v
}

func (s *Static) PutService(svc domain.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Static) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Static) Venue(_ context.Context, id string) (*domain.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.venues[id]
	if !ok {
		return nil, fmt.Errorf("catalog.Static.Venue: venue %s:%w", id, repository.ErrNotFound)
	}
	return &v, nil
}

func (s *Static) Services(_ context.Context, ids []string) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		svc, ok := s.services[id]
		if !ok {
			return nil, fmt.Errorf("catalog.Static.Services: service %s:%w", id, repository.ErrNotFound)
		}
		out = append(out, svc)
	}
	return out, nil
}

func (s *Static) User(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("catalog.Static.User: user %s:%w", id, repository.ErrNotFound)
	}
	return &u, nil
}

func (s *Static) VenuesByOwner(_ context.Context, ownerID string) ([]domain.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Venue
	for _, v := range s.venues {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Static) ServicesByProvider(_ context.Context, providerID string) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Service
	for _, svc := range s.services {
		if svc.ProviderID == providerID {
			out = append(out, svc)
		}
	}
	return out, nil
}
