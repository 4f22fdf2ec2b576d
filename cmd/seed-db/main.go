package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/vinitamart/storefront/db"
	"github.com/vinitamart/storefront/internal/catalog"
	"github.com/vinitamart/storefront/internal/domain/auth"
	"github.com/vinitamart/storefront/internal/domain/product"
	storemongo "github.com/vinitamart/storefront/internal/storage/mongo"
	"github.com/vinitamart/storefront/internal/storage/postgres"
)

type options struct {
	databaseURL    string
	productsFile   string
	mongoURI       string
	mongoDatabase  string
	sellerPassword string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "", "path to a products JSON file; the bundled catalog is used when empty")
	flag.StringVar(&opts.mongoURI, "mongo-uri", "", "seed the MongoDB catalog instead of PostgreSQL (or MONGO_URI env)")
	flag.StringVar(&opts.mongoDatabase, "mongo-db", "storefront", "MongoDB database name")
	flag.StringVar(&opts.sellerPassword, "seller-password", "", "print a bcrypt hash of this password for STOREFRONT_AUTH_SELLERPASSWORDHASH")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.mongoURI == "" {
		opts.mongoURI = os.Getenv("MONGO_URI")
	}
	if opts.databaseURL == "" && opts.mongoURI == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
}

type upserter interface {
	Upsert(ctx context.Context, products []product.Product) error
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	if opts.sellerPassword != "" {
		hash, err := auth.HashPassword(opts.sellerPassword)
		if err != nil {
			return errors.Wrap(err, "hash seller password")
		}
		fmt.Println(hash)
	}

	products, err := loadProducts(lg, opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}

	var target upserter
	if opts.mongoURI != "" {
		lg.Info("Connecting to MongoDB")
		client, err := storemongo.Connect(ctx, opts.mongoURI)
		if err != nil {
			return errors.Wrap(err, "connect to mongo")
		}
		defer func() { _ = client.Disconnect(context.WithoutCancel(ctx)) }()

		mdb := client.Database(opts.mongoDatabase)
		if err := storemongo.EnsureIndexes(ctx, mdb); err != nil {
			return errors.Wrap(err, "ensure indexes")
		}
		target = storemongo.NewProductRepository(mdb)
	} else {
		lg.Info("Connecting to database")
		pool, err := postgres.NewPool(ctx, opts.databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		lg.Info("Running migrations")
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		target = postgres.NewProductRepository(pool)
	}

	lg.Info("Upserting products", zap.Int("count", len(products)))
	if err := target.Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	for _, p := range products {
		lg.Debug("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}

func loadProducts(lg *zap.Logger, path string) ([]product.Product, error) {
	data := db.SeedProducts
	if path != "" {
		lg.Info("Reading products file", zap.String("path", path))
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
	}
	return catalog.DecodeList(data)
}
