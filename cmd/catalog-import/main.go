// Command catalog-import bulk loads gzip-compressed JSON-lines product dumps.
// Files are applied in name order: when several dumps carry the same product
// id, the last file wins and earlier copies are never written.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vinitamart/storefront/internal/catalog"
	"github.com/vinitamart/storefront/internal/domain/product"
	"github.com/vinitamart/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 5_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 1_000_000
	maxLineBytes  = 1 << 20
)

type upserter interface {
	Upsert(ctx context.Context, products []product.Product) error
}

// fileResult is what pass 2 learned about one file.
type fileResult struct {
	// written holds the ids written from this file that an earlier file may
	// also carry.
	written map[string]struct{}
	// deferred holds products that a later file may supersede.
	deferred map[string]product.Product
	invalid  uint64
}

type importer struct {
	lg    *zap.Logger
	store upserter
	files []string

	capacity uint
	upserted atomic.Int64
}

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing product dumps")
	flag.StringVar(&pattern, "pattern", "*.jsonl.gz", "glob selecting the dumps inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, filepath.Join(dataDir, pattern), databaseURL); err != nil {
		lg.Fatal("Catalog import failed", zap.Error(err))
	}
	lg.Info("Catalog import completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, glob, databaseURL string) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "glob %s", glob)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}
	sort.Strings(files)

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := &importer{
		lg:       lg,
		store:    postgres.NewProductRepository(pool),
		files:    files,
		capacity: bloomCapacity,
	}
	return imp.Run(ctx)
}

// Run imports every file. Pass 1 builds one bloom filter of ids per file.
// Pass 2 streams the files concurrently, writing products no later file
// carries and deferring the rest. Deferred products whose id turns out to be
// a bloom false positive are written last.
func (imp *importer) Run(ctx context.Context) error {
	imp.lg.Info("Pass 1: building bloom filters", zap.Int("files", len(imp.files)))
	filters, err := imp.buildBloomFilters(ctx)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	imp.lg.Info("Pass 2: importing products")
	results, err := imp.importFiles(ctx, filters)
	if err != nil {
		return errors.Wrap(err, "import files")
	}

	leftovers := resolveDeferred(results)
	imp.lg.Info("Writing deferred products", zap.Int("count", len(leftovers)))
	if err := imp.write(ctx, leftovers); err != nil {
		return errors.Wrap(err, "write deferred products")
	}

	var invalid uint64
	for _, r := range results {
		invalid += r.invalid
	}
	imp.lg.Info("Import summary",
		zap.Int64("upserted", imp.upserted.Load()),
		zap.Uint64("invalid", invalid),
	)
	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func (imp *importer) buildBloomFilters(ctx context.Context) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(imp.files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range imp.files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(imp.capacity, bloomFPR)
			var count uint64
			if err := streamGzFile(ctx, path, func(line []byte) error {
				p, err := catalog.DecodeLine(line)
				if err != nil {
					return nil
				}
				filter.AddString(p.ID)
				count++
				if count%progressEvery == 0 {
					imp.lg.Info("Pass 1 progress", zap.Int("file", i+1), zap.Uint64("products", count))
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			imp.lg.Info("Pass 1 complete", zap.String("path", path), zap.Uint64("products", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func (imp *importer) importFiles(ctx context.Context, filters []*bloom.BloomFilter) ([]fileResult, error) {
	results := make([]fileResult, len(imp.files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range imp.files {
		g.Go(func() error {
			r, err := imp.importFile(ctx, i, path, filters)
			if err != nil {
				return errors.Wrapf(err, "import file %d", i+1)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (imp *importer) importFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (fileResult, error) {
	r := fileResult{
		written:  make(map[string]struct{}),
		deferred: make(map[string]product.Product),
	}
	batch := make([]product.Product, 0, batchSize)
	var count uint64

	err := streamGzFile(ctx, path, func(line []byte) error {
		p, err := catalog.DecodeLine(line)
		if err != nil {
			r.invalid++
			imp.lg.Debug("Skipping invalid product", zap.String("path", path), zap.Error(err))
			return nil
		}
		count++
		if count%progressEvery == 0 {
			imp.lg.Info("Pass 2 progress", zap.Int("file", idx+1), zap.Uint64("products", count))
		}

		if anyFilterHas(filters[idx+1:], p.ID) {
			r.deferred[p.ID] = p
			return nil
		}
		if anyFilterHas(filters[:idx], p.ID) {
			r.written[p.ID] = struct{}{}
		}
		batch = append(batch, p)
		if len(batch) == batchSize {
			if err := imp.write(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return fileResult{}, err
	}
	if err := imp.write(ctx, batch); err != nil {
		return fileResult{}, err
	}

	imp.lg.Info("Pass 2 complete",
		zap.String("path", path),
		zap.Uint64("products", count),
		zap.Int("deferred", len(r.deferred)),
		zap.Uint64("invalid", r.invalid),
	)
	return r, nil
}

func (imp *importer) write(ctx context.Context, products []product.Product) error {
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		if err := imp.store.Upsert(ctx, products[start:end]); err != nil {
			return errors.Wrap(err, "upsert batch")
		}
		imp.upserted.Add(int64(end - start))
	}
	return nil
}

func anyFilterHas(filters []*bloom.BloomFilter, id string) bool {
	for _, f := range filters {
		if f.TestString(id) {
			return true
		}
	}
	return false
}

// resolveDeferred returns the deferred products that no later file carries.
// A later copy is either written (and recorded, since this file's filter
// matches it) or deferred itself.
func resolveDeferred(results []fileResult) []product.Product {
	var out []product.Product
	for i, r := range results {
		for id, p := range r.deferred {
			superseded := false
			for _, later := range results[i+1:] {
				_, written := later.written[id]
				_, deferred := later.deferred[id]
				if written || deferred {
					superseded = true
					break
				}
			}
			if !superseded {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty
// line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
