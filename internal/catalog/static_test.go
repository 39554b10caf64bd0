package catalog

import (
	"context"
	"testing"

	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticServicesKeepsOrderAndRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	dir := NewStatic()
	dir.PutService(domain.Service{ID: "a", Name: "Catering"})
	dir.PutService(domain.Service{ID: "b", Name: "Photography"})

	got, err := dir.Services(ctx, []string{"b", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Photography", got[0].Name)
	assert.Equal(t, "Catering", got[1].Name)

	_, err = dir.Services(ctx, []string{"a", "missing"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStaticVenuesByOwner(t *testing.T) {
	ctx := context.Background()
	dir := NewStatic()
	dir.PutVenue(domain.Venue{ID: "v1", OwnerID: "o1"})
	dir.PutVenue(domain.Venue{ID: "v2", OwnerID: "o2"})

	got, err := dir.VenuesByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].ID)

	_, err = dir.Venue(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStaticServicesByProvider(t *testing.T) {
	ctx := context.Background()
	dir := NewStatic()
	dir.PutService(domain.Service{ID: "a", ProviderID: "p1"})
	dir.PutService(domain.Service{ID: "b", ProviderID: "p2"})

	got, err := dir.ServicesByProvider(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got, err = dir.ServicesByProvider(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}
