package mongo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDecimal128RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "100", "12.5", "99999.99"} {
		d := decimal.RequireFromString(s)
		v, err := toDecimal128(d)
		require.NoError(t, err)
		back, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.True(t, d.Equal(back), s)
	}
}

func decodeProductDoc(t *testing.T, doc bson.M) productDoc {
	t.Helper()
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var d productDoc
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func TestProductDoc_LegacyShape(t *testing.T) {
	oid := primitive.NewObjectID()
	d := decodeProductDoc(t, bson.M{
		"_id":         oid,
		"name":        "Basmati Rice 5kg",
		"description": bson.A{"Long grain", "Aged"},
		"category":    "Grains",
		"price":       650.0,
		"offerPrice":  int32(600),
		"image":       bson.A{"rice.png"},
		"inStock":     true,
	})

	p, err := d.toDomain()
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), p.ID)
	assert.Equal(t, "Long grain\nAged", p.Description)
	assert.True(t, decimal.NewFromInt(650).Equal(p.Price))
	assert.True(t, decimal.NewFromInt(600).Equal(p.OfferPrice))
	assert.Equal(t, []string{"rice.png"}, p.Images)
}

func TestProductDoc_NativeShape(t *testing.T) {
	price, err := toDecimal128(decimal.RequireFromString("120.50"))
	require.NoError(t, err)
	offer, err := toDecimal128(decimal.NewFromInt(100))
	require.NoError(t, err)
	d := decodeProductDoc(t, bson.M{
		"_id":        "apple",
		"name":       "Apple",
		"price":      price,
		"offerPrice": offer,
		"offerExtra": "ignored",
	})

	p, err := d.toDomain()
	require.NoError(t, err)
	assert.Equal(t, "apple", p.ID)
	assert.Empty(t, p.Description)
	assert.True(t, decimal.RequireFromString("120.5").Equal(p.Price))
	assert.True(t, decimal.NewFromInt(100).Equal(p.OfferPrice))
}

func TestProductDoc_Invalid(t *testing.T) {
	for name, doc := range map[string]bson.M{
		"numeric id":    {"_id": 7, "name": "x", "price": 1.0, "offerPrice": 1.0},
		"text price":    {"_id": "a", "name": "x", "price": "1", "offerPrice": 1.0},
		"missing offer": {"_id": "a", "name": "x", "price": 1.0},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeProductDoc(t, doc).toDomain()
			assert.Error(t, err)
		})
	}
}

func TestIDValues(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, []any{"apple", oid.Hex(), oid}, idValues("apple", oid.Hex()))
	assert.Equal(t, oid, storedID(oid.Hex()))
	assert.Equal(t, "apple", storedID("apple"))
}
