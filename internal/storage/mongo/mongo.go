// Package mongo implements the storefront catalog and address book on
// MongoDB.
package mongo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	productsCollection  = "products"
	addressesCollection = "addresses"
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping")
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories query by.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(addressesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerId", Value: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "create addresses owner index")
	}
	_, err = db.Collection(productsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "create products category index")
	}
	return nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, errors.Wrapf(err, "convert %s", d)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "convert %s", v)
	}
	return d, nil
}

// storedID is the _id value written for id: an ObjectID when id is its hex
// form, the string otherwise.
func storedID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// idValues lists every _id value id may be stored as.
func idValues(ids ...string) []any {
	out := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		out = append(out, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func idFilter(ids ...string) bson.M {
	return bson.M{"_id": bson.M{"$in": idValues(ids...)}}
}

// rawID reads an ObjectID or string _id.
func rawID(v bson.RawValue) (string, error) {
	switch v.Type {
	case bson.TypeObjectID:
		return v.ObjectID().Hex(), nil
	case bson.TypeString:
		return v.StringValue(), nil
	default:
		return "", errors.Errorf("unsupported _id type %s", v.Type)
	}
}

// rawDecimal reads a Decimal128 or a plain number.
func rawDecimal(v bson.RawValue) (decimal.Decimal, error) {
	switch v.Type {
	case bson.TypeDecimal128:
		return fromDecimal128(v.Decimal128())
	case bson.TypeDouble:
		return decimal.NewFromFloat(v.Double()), nil
	case bson.TypeInt32:
		return decimal.NewFromInt32(v.Int32()), nil
	case bson.TypeInt64:
		return decimal.NewFromInt(v.Int64()), nil
	default:
		return decimal.Decimal{}, errors.Errorf("unsupported number type %s", v.Type)
	}
}

// rawText reads a string or an array of strings joined by newlines. A
// missing value is empty.
func rawText(v bson.RawValue) (string, error) {
	switch v.Type {
	case 0, bson.TypeNull:
		return "", nil
	case bson.TypeString:
		return v.StringValue(), nil
	case bson.TypeArray:
		values, err := v.Array().Values()
		if err != nil {
			return "", errors.Wrap(err, "read array")
		}
		lines := make([]string, 0, len(values))
		for _, e := range values {
			s, ok := e.StringValueOK()
			if !ok {
				return "", errors.Errorf("unsupported array element type %s", e.Type)
			}
			lines = append(lines, s)
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", errors.Errorf("unsupported text type %s", v.Type)
	}
}
