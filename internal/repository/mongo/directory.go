// Package mongo reads the venue, service and user catalog kept by the
// marketplace in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	URI      string
	Database string
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	const op = "mongo.Connect"

	ctxConn, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctxConn, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := client.Ping(ctxConn, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return client, nil
}

type venueDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Owner       primitive.ObjectID `bson:"owner"`
	Name        string             `bson:"name"`
	Location    string             `bson:"location"`
	Capacity    int                `bson:"capacity"`
	PricePerDay float64            `bson:"pricePerDay"`
}

type serviceDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Provider primitive.ObjectID `bson:"provider"`
	Name     string             `bson:"name"`
	Type     string             `bson:"type"`
	Pricing  struct {
		Hourly    float64 `bson:"hourly"`
		FullEvent float64 `bson:"fullEvent"`
	} `bson:"pricing"`
}

type userDoc struct {
	ID     primitive.ObjectID `bson:"_id"`
	Name   string             `bson:"name"`
	Email  string             `bson:"email"`
	Mobile string             `bson:"mobile"`
	Role   string             `bson:"role"`
}

// Directory implements catalog.Directory over the venues, services and users
// collections. Prices are stored in major units and converted to cents.
type Directory struct {
	venues   *mongo.Collection
	services *mongo.Collection
	users    *mongo.Collection
}

func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{
		venues:   db.Collection("venues"),
		services: db.Collection("services"),
		users:    db.Collection("users"),
	}
}

func (d *Directory) Venue(ctx context.Context, id string) (*domain.Venue, error) {
	const op = "mongo.Directory.Venue"

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%s: venue %s:%w", op, id, repository.ErrNotFound)
	}

	var doc venueDoc
	if err := d.venues.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	v := doc.toDomain()
	return &v, nil
}

func (d *Directory) Services(ctx context.Context, ids []string) ([]domain.Service, error) {
	const op = "mongo.Directory.Services"

	if len(ids) == 0 {
		return nil, nil
	}

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%s: service %s:%w", op, id, repository.ErrNotFound)
		}
		oids = append(oids, oid)
	}

	cur, err := d.services.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	defer cur.Close(ctx)

	var docs []serviceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	byID := make(map[string]domain.Service, len(docs))
	for _, doc := range docs {
		byID[doc.ID.Hex()] = doc.toDomain()
	}

	out := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		svc, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%s: service %s:%w", op, id, repository.ErrNotFound)
		}
		out = append(out, svc)
	}

	return out, nil
}

func (d *Directory) User(ctx context.Context, id string) (*domain.User, error) {
	const op = "mongo.Directory.User"

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%s: user %s:%w", op, id, repository.ErrNotFound)
	}

	var doc userDoc
	if err := d.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return &domain.User{
		ID:    doc.ID.Hex(),
		Name:  doc.Name,
		Email: doc.Email,
		Phone: doc.Mobile,
		Role:  doc.Role,
	}, nil
}

func (d *Directory) VenuesByOwner(ctx context.Context, ownerID string) ([]domain.Venue, error) {
	const op = "mongo.Directory.VenuesByOwner"

	oid, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, nil
	}

	cur, err := d.venues.Find(ctx, bson.M{"owner": oid})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	defer cur.Close(ctx)

	var docs []venueDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	out := make([]domain.Venue, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}

	return out, nil
}

func (d *Directory) ServicesByProvider(ctx context.Context, providerID string) ([]domain.Service, error) {
	const op = "mongo.Directory.ServicesByProvider"

	oid, err := primitive.ObjectIDFromHex(providerID)
	if err != nil {
		return nil, nil
	}

	cur, err := d.services.Find(ctx, bson.M{"provider": oid}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	defer cur.Close(ctx)

	var docs []serviceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	out := make([]domain.Service, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}

	return out, nil
}

func (doc venueDoc) toDomain() domain.Venue {
	return domain.Venue{
		ID:               doc.ID.Hex(),
		OwnerID:          doc.Owner.Hex(),
		Name:             doc.Name,
		Location:         doc.Location,
		Capacity:         doc.Capacity,
		PricePerDayCents: toCents(doc.PricePerDay),
	}
}

func (doc serviceDoc) toDomain() domain.Service {
	return domain.Service{
		ID:         doc.ID.Hex(),
		ProviderID: doc.Provider.Hex(),
		Name:       doc.Name,
		Type:       doc.Type,
		Pricing: domain.ServicePricing{
			FullEventCents: toCents(doc.Pricing.FullEvent),
			HourlyCents:    toCents(doc.Pricing.Hourly),
		},
	}
}

func toCents(major float64) int64 {
	return int64(math.Round(major * 100))
}

func translateErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}
