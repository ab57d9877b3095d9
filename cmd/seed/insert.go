package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog-search/internal/repository/memory"
	"github.com/utafrali/catalog-search/pkg/slug"
)

const batchSize = 500

// batchSender is satisfied by *pgxpool.Pool and pgx.Tx.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func insertCatalog(ctx context.Context, db batchSender, catalog memory.Seed, log *slog.Logger) error {
	b := &pgx.Batch{}
	for _, a := range attributes {
		b.Queue(`INSERT INTO attributes (id, name, slug) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			a.ID, a.Name, slug.Make(a.Name))
		for id, value := range a.Values {
			b.Queue(`INSERT INTO attribute_values (id, attribute_id, value) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
				id, a.ID, value)
		}
	}
	for _, c := range catalog.Categories {
		b.Queue(`INSERT INTO categories (id, name, slug, is_active) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			c.ID, c.Name, c.Slug, c.IsActive)
	}
	if err := send(ctx, db, b); err != nil {
		return fmt.Errorf("insert categories and attributes: %w", err)
	}

	for start := 0; start < len(catalog.Products); start += batchSize {
		end := min(start+batchSize, len(catalog.Products))

		b := &pgx.Batch{}
		for _, p := range catalog.Products[start:end] {
			queueProduct(b, p)
		}
		if err := send(ctx, db, b); err != nil {
			return fmt.Errorf("insert products %d-%d: %w", start, end, err)
		}
		log.Info("inserted products", slog.Int("done", end), slog.Int("total", len(catalog.Products)))
	}

	b = &pgx.Batch{}
	for _, table := range []string{"categories", "products", "product_variants", "attributes", "attribute_values"} {
		b.Queue(fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 1))`, table))
	}
	if err := send(ctx, db, b); err != nil {
		return fmt.Errorf("advance sequences: %w", err)
	}
	return nil
}

func queueProduct(b *pgx.Batch, p memory.Product) {
	b.Queue(`INSERT INTO products (id, name, slug, sku, description, short_description, price, is_active, track_inventory, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Slug, p.SKU, p.Description, p.ShortDescription, p.Price,
		p.IsActive, p.TrackInventory, p.CreatedAt)

	for _, categoryID := range p.CategoryIDs {
		b.Queue(`INSERT INTO category_product (category_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			categoryID, p.ID)
	}

	for _, v := range p.Variants {
		b.Queue(`INSERT INTO product_variants (id, product_id, sku, price, stock_quantity, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7) ON CONFLICT (id) DO NOTHING`,
			v.ID, p.ID, v.SKU, v.Price, v.StockQuantity, v.IsActive, p.CreatedAt)
	}

	for attributeID, valueIDs := range p.AttributeValues {
		for _, valueID := range valueIDs {
			b.Queue(`INSERT INTO product_attribute_values (product_id, attribute_id, attribute_value_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				p.ID, attributeID, valueID)
		}
	}
}

func send(ctx context.Context, db batchSender, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	return db.SendBatch(ctx, b).Close()
}
