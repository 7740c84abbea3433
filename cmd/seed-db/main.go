// Command seed-db loads the product catalog from a JSON file (optionally
// gzip-compressed) into the database, creating the schema first. Existing
// products are matched by name and updated in place, so reruns are safe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rdistribuidora/storefront/internal/storage/postgres"
)

type productJSON struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	ImageRef string          `json:"image_ref"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		workers      int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file (.json or .json.gz)")
	flag.IntVar(&workers, "workers", 4, "concurrent upsert workers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, workers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, workers int) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := readProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}

	slog.Info("upserting products", slog.Int("count", len(products)), slog.Int("workers", workers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range products {
		g.Go(func() error {
			if err := upsertProduct(ctx, pool, p); err != nil {
				return errors.Wrapf(err, "upsert product %q", p.Name)
			}
			slog.Info("upserted product", slog.String("name", p.Name), slog.String("price", p.Price.StringFixed(2)))
			return nil
		})
	}
	return g.Wait()
}

func readProducts(path string) ([]productJSON, error) {
	slog.Info("reading products file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer zr.Close()
		r = zr
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "parse JSON")
	}
	for _, p := range products {
		if p.Name == "" {
			return nil, errors.New("product with empty name")
		}
		if p.Price.IsNegative() || p.Stock < 0 {
			return nil, errors.Errorf("product %q has negative price or stock", p.Name)
		}
	}
	return products, nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productJSON) error {
	tag, err := pool.Exec(ctx,
		`UPDATE products SET price = $2, stock = $3, image_ref = $4 WHERE name = $1`,
		p.Name, p.Price, p.Stock, p.ImageRef,
	)
	if err != nil {
		return errors.Wrap(err, "update")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Not present yet. A concurrent seeder could insert the same name
	// between the update and this insert, but seed runs are single-shot.
	_, err = pool.Exec(ctx,
		`INSERT INTO products (name, price, stock, image_ref) VALUES ($1, $2, $3, $4)`,
		p.Name, p.Price, p.Stock, p.ImageRef,
	)
	return errors.Wrap(err, "insert")
}
