// Command catalog-seed loads pricing feed files into the catalog_prices
// table. Files ending in .gz are decompressed. When several files name the
// same product, the later file wins.
package main

import (
	"context"
	"flag"
	"os"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/storage/feed"
	"github.com/xenking/petshop-storefront/internal/storage/postgres"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or PETSHOP_DATABASE_URL / DATABASE_URL env)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		files = []string{"harga.json"}
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			databaseURL = os.Getenv("PETSHOP_DATABASE_URL")
		}
		if databaseURL == "" {
			databaseURL = os.Getenv("DATABASE_URL")
		}
		if databaseURL == "" {
			return errors.New("database URL is required: set -database-url, PETSHOP_DATABASE_URL or DATABASE_URL")
		}
		return run(ctx, lg, databaseURL, files)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string) error {
	pricing, err := readAll(ctx, lg, files)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := postgres.NewCatalogSource(pool).Upsert(ctx, pricing); err != nil {
		return errors.Wrap(err, "upsert pricing")
	}
	lg.Info("Seed completed", zap.Int("products", len(pricing)))
	return nil
}

// readAll parses files concurrently and merges them in argument order.
func readAll(ctx context.Context, lg *zap.Logger, files []string) (catalog.Pricing, error) {
	parsed := make([]catalog.Pricing, len(files))

	g, _ := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			p, err := readFile(path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			parsed[i] = p
			lg.Info("Parsed feed", zap.String("path", path), zap.Int("entries", len(p)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, skipped := merge(parsed)
	for _, name := range skipped {
		lg.Warn("Skipping unknown product", zap.String("name", string(name)))
	}
	return merged, nil
}

// merge folds feeds in order so a later feed overrides an earlier one per
// product. Names outside the catalog are dropped and reported once each.
func merge(feeds []catalog.Pricing) (catalog.Pricing, []catalog.ProductName) {
	merged := make(catalog.Pricing)
	seen := make(map[catalog.ProductName]struct{})
	var skipped []catalog.ProductName
	for _, p := range feeds {
		for name, q := range p {
			if !catalog.IsKnown(name) {
				if _, ok := seen[name]; !ok {
					seen[name] = struct{}{}
					skipped = append(skipped, name)
				}
				continue
			}
			merged[name] = q
		}
	}
	slices.Sort(skipped)
	return merged, skipped
}

func readFile(path string) (catalog.Pricing, error) {
	r, err := feed.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return feed.Parse(r)
}
