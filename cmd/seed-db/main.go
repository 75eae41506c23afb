package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/product"
	"github.com/xenking/comeia-checkout/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		skipUsers    bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to a products JSON file; the built-in catalog when empty")
	flag.BoolVar(&skipUsers, "skip-users", false, "do not seed the demo accounts")
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

	if err := run(ctx, databaseURL, productsFile, skipUsers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, skipUsers bool) error {
	products := product.Seed()
	if productsFile != "" {
		slog.Info("reading products file", slog.String("path", productsFile))
		f, err := os.Open(productsFile)
		if err != nil {
			return errors.Wrap(err, "open products file")
		}
		products, err = decodeProducts(f)
		_ = f.Close()
		if err != nil {
			return errors.Wrap(err, "parse products file")
		}
	}

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

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
			return err
		}
		slog.Info("upserted products", slog.Int("count", len(products)))
		return nil
	})
	if !skipUsers {
		g.Go(func() error {
			accounts := identity.SeedAccounts()
			if err := postgres.NewUserRepository(pool).Seed(ctx, accounts); err != nil {
				return err
			}
			for _, a := range accounts {
				slog.Info("seeded account", slog.String("email", a.User.Email))
			}
			return nil
		})
	}
	return g.Wait()
}

// decodeProducts reads a JSON array of products. Prices are decimal strings
// or numbers.
func decodeProducts(r io.Reader) ([]product.Product, error) {
	var out []product.Product
	err := jx.Decode(r, 64*1024).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "price":
				p.Price, err = decodePrice(d)
			case "description":
				p.Description, err = d.Str()
			case "image":
				p.Image, err = d.Str()
			case "category":
				p.Category, err = d.Str()
			case "stock":
				p.Stock, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if p.ID == "" || p.Name == "" {
			return errors.Errorf("product %d: id and name are required", len(out))
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}
