package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vinitamart/storefront/internal/domain/address"
)

type addressDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"ownerId"`
	FirstName string    `bson:"firstName"`
	LastName  string    `bson:"lastName"`
	Email     string    `bson:"email"`
	Street    string    `bson:"street"`
	City      string    `bson:"city"`
	State     string    `bson:"state"`
	ZipCode   int       `bson:"zipCode"`
	Country   string    `bson:"country"`
	Phone     string    `bson:"phone"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d addressDoc) toDomain() address.Address {
	return address.Address(d)
}

var _ address.Book = (*AddressRepository)(nil)

// AddressRepository implements address.Book on a MongoDB collection.
type AddressRepository struct {
	coll *mongo.Collection
}

// NewAddressRepository returns an AddressRepository over the addresses
// collection of db.
func NewAddressRepository(db *mongo.Database) *AddressRepository {
	return &AddressRepository{coll: db.Collection(addressesCollection)}
}

func (r *AddressRepository) FindByID(ctx context.Context, id string) (*address.Address, error) {
	var doc addressDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, address.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get address %q", id)
	}
	a := doc.toDomain()
	return &a, nil
}

func (r *AddressRepository) FindByIDs(ctx context.Context, ids []string) ([]address.Address, error) {
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *AddressRepository) ListByOwner(ctx context.Context, ownerID string) ([]address.Address, error) {
	return r.find(ctx, bson.M{"ownerId": ownerID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// Create inserts the address, assigning an ObjectID hex id when none is set.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	if a.ID == "" {
		a.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.coll.InsertOne(ctx, addressDoc(*a)); err != nil {
		return errors.Wrapf(err, "insert address %q", a.ID)
	}
	return nil
}

func (r *AddressRepository) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]address.Address, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "find addresses")
	}
	var docs []addressDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode addresses")
	}
	addrs := make([]address.Address, len(docs))
	for i, d := range docs {
		addrs[i] = d.toDomain()
	}
	return addrs, nil
}
