package mongo

import (
	"errors"
	"testing"

	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestVenueDocDecodesMarketplaceShape(t *testing.T) {
	id, owner := primitive.NewObjectID(), primitive.NewObjectID()

	raw, err := bson.Marshal(bson.M{
		"_id":         id,
		"owner":       owner,
		"name":        "Lotus Hall",
		"location":    "Pune",
		"capacity":    100,
		"pricePerDay": 10000.5,
		"facilities":  bson.A{"parking"},
	})
	assert.NoError(t, err)

	var doc venueDoc
	assert.NoError(t, bson.Unmarshal(raw, &doc))

	v := doc.toDomain()
	assert.Equal(t, id.Hex(), v.ID)
	assert.Equal(t, owner.Hex(), v.OwnerID)
	assert.Equal(t, 100, v.Capacity)
	assert.Equal(t, int64(1000050), v.PricePerDayCents)
}

func TestServiceDocPricing(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":     primitive.NewObjectID(),
		"name":    "Photography",
		"pricing": bson.M{"hourly": 500},
	})
	assert.NoError(t, err)

	var doc serviceDoc
	assert.NoError(t, bson.Unmarshal(raw, &doc))

	svc := doc.toDomain()
	assert.Zero(t, svc.Pricing.FullEventCents)
	assert.Equal(t, int64(50000), svc.Pricing.HourlyCents)
}

func TestTranslateErr(t *testing.T) {
	assert.ErrorIs(t, translateErr(mongo.ErrNoDocuments), repository.ErrNotFound)

	other := errors.New("socket closed")
	assert.Equal(t, other, translateErr(other))
}
