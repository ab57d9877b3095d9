package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/pkg/slug"
)

// Category is a catalog category.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"is_active"`
}

// Variant is a purchasable variant of a product. A nil Price means the
// variant inherits the product price.
type Variant struct {
	ID            int64            `json:"id"`
	SKU           string           `json:"sku"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity int              `json:"stock_quantity"`
	IsActive      bool             `json:"is_active"`
}

// Product is a catalog product with its variants and associations.
// AttributeValues maps an attribute id to the value ids the product carries.
type Product struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	SKU              string            `json:"sku"`
	Description      string            `json:"description"`
	ShortDescription string            `json:"short_description"`
	Price            decimal.Decimal   `json:"price"`
	IsActive         bool              `json:"is_active"`
	TrackInventory   bool              `json:"track_inventory"`
	CreatedAt        time.Time         `json:"created_at"`
	Variants         []Variant         `json:"variants"`
	CategoryIDs      []int64           `json:"category_ids"`
	AttributeValues  map[int64][]int64 `json:"attribute_values"`
}

// withSlug derives a missing slug from the name.
func (c Category) withSlug() Category {
	if c.Slug == "" {
		c.Slug = slug.Make(c.Name)
	}
	return c
}

func (p Product) withSlug() Product {
	if p.Slug == "" {
		p.Slug = slug.Make(p.Name)
	}
	return p
}

// Seed is the JSON document accepted by Load.
type Seed struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
}

// Load reads a JSON seed document and upserts its contents.
func (r *Repository) Load(src io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(src).Decode(&seed); err != nil {
		return fmt.Errorf("decode catalog seed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range seed.Categories {
		r.categories[c.ID] = c.withSlug()
	}
	for _, p := range seed.Products {
		r.products[p.ID] = p.withSlug()
	}
	return nil
}

// LoadFile loads a JSON seed document from path.
func (r *Repository) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog seed: %w", err)
	}
	defer f.Close()

	return r.Load(f)
}
