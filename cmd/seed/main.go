// Command seed generates a deterministic demo catalog. It writes the JSON
// document accepted by SEARCH_MEMORY_SEED_FILE, or loads the catalog into
// PostgreSQL with -postgres.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/internal/repository/memory"
	"github.com/utafrali/catalog-search/migrations"
	"github.com/utafrali/catalog-search/pkg/database"
	"github.com/utafrali/catalog-search/pkg/logger"
)

func main() {
	var (
		count    = flag.Int("n", 1000, "number of products to generate")
		seed     = flag.Int64("seed", 42, "random seed")
		out      = flag.String("out", "-", "output file for the JSON catalog, - for stdout")
		postgres = flag.Bool("postgres", false, "insert into PostgreSQL using the service configuration instead of writing JSON")
	)
	flag.Parse()

	log := logger.New("catalog-seed", "info")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	catalog := generate(*count, *seed, time.Now())

	var err error
	if *postgres {
		err = seedPostgres(ctx, catalog, log)
	} else {
		err = writeJSON(*out, catalog)
	}
	if err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("seed complete",
		slog.Int("categories", len(catalog.Categories)),
		slog.Int("products", len(catalog.Products)),
	)
}

func writeJSON(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return nil
}

func seedPostgres(ctx context.Context, catalog memory.Seed, log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return insertCatalog(ctx, pool, catalog, log)
}
