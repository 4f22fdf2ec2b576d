package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vinitamart/storefront/internal/domain/product"
)

// productDoc reads both the documents written here (string ids, Decimal128
// prices) and those of the original storefront (ObjectID ids, double prices,
// descriptions as string arrays).
type productDoc struct {
	ID          bson.RawValue `bson:"_id"`
	Name        string        `bson:"name"`
	Description bson.RawValue `bson:"description"`
	Category    string        `bson:"category"`
	Price       bson.RawValue `bson:"price"`
	OfferPrice  bson.RawValue `bson:"offerPrice"`
	Images      []string      `bson:"image"`
	InStock     bool          `bson:"inStock"`
	CreatedAt   time.Time     `bson:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt"`
}

func (d productDoc) toDomain() (product.Product, error) {
	id, err := rawID(d.ID)
	if err != nil {
		return product.Product{}, errors.Wrap(err, "product id")
	}
	description, err := rawText(d.Description)
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "description of %q", id)
	}
	price, err := rawDecimal(d.Price)
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "price of %q", id)
	}
	offer, err := rawDecimal(d.OfferPrice)
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "offer price of %q", id)
	}
	return product.Product{
		ID:          id,
		Name:        d.Name,
		Description: description,
		Category:    d.Category,
		Price:       price,
		OfferPrice:  offer,
		Images:      d.Images,
		InStock:     d.InStock,
	}, nil
}

var _ product.Catalog = (*ProductRepository)(nil)

// ProductRepository implements product.Catalog on a MongoDB collection.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository returns a ProductRepository over the products
// collection of db.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection)}
}

func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{}, opts)
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*product.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, idFilter(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return r.find(ctx, idFilter(ids...))
}

func (r *ProductRepository) SetInStock(ctx context.Context, id string, inStock bool) (*product.Product, error) {
	var doc productDoc
	err := r.coll.FindOneAndUpdate(ctx,
		idFilter(id),
		bson.M{"$set": bson.M{"inStock": inStock, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "set stock of %q", id)
	}
	p, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert replaces the given products in one bulk write.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(products))
	for _, p := range products {
		price, err := toDecimal128(p.Price)
		if err != nil {
			return errors.Wrapf(err, "price of %q", p.ID)
		}
		offer, err := toDecimal128(p.OfferPrice)
		if err != nil {
			return errors.Wrapf(err, "offer price of %q", p.ID)
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": storedID(p.ID)}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"name":        p.Name,
					"description": p.Description,
					"category":    p.Category,
					"price":       price,
					"offerPrice":  offer,
					"image":       p.Images,
					"inStock":     p.InStock,
					"updatedAt":   now,
				},
				"$setOnInsert": bson.M{"createdAt": now},
			}).
			SetUpsert(true))
	}
	if _, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	return nil
}

func (r *ProductRepository) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]product.Product, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	products := make([]product.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}
