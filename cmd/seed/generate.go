package main

import (
	"fmt"
	"maps"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/repository/memory"
	"github.com/utafrali/catalog-search/pkg/slug"
)

// attributeDef is a filterable attribute and its value ids.
type attributeDef struct {
	ID     int64
	Name   string
	Values map[int64]string
}

var attributes = []attributeDef{
	{ID: 1, Name: "Color", Values: map[int64]string{11: "Black", 12: "White", 13: "Red", 14: "Blue", 15: "Green"}},
	{ID: 2, Name: "Size", Values: map[int64]string{21: "S", 22: "M", 23: "L", 24: "XL"}},
	{ID: 3, Name: "Material", Values: map[int64]string{31: "Cotton", 32: "Steel", 33: "Plastic", 34: "Glass"}},
}

type categoryDef struct {
	Name  string
	Nouns []string
}

var categories = []categoryDef{
	{"Energy", []string{"Solar Panel", "Power Bank", "Inverter", "Charge Controller"}},
	{"Lighting", []string{"Desk Lamp", "LED Strip", "Floor Lamp", "Lantern"}},
	{"Kitchen", []string{"Kettle", "Chef Knife", "Cutting Board", "Coffee Grinder"}},
	{"Outdoor", []string{"Tent", "Sleeping Bag", "Camping Stove", "Water Bottle"}},
	{"Apparel", []string{"Rain Jacket", "Wool Socks", "Hoodie", "Running Shorts"}},
	{"Audio", []string{"Headphones", "Bluetooth Speaker", "Earbuds", "Turntable"}},
}

var adjectives = []string{
	"Compact", "Portable", "Premium", "Classic", "Ultra", "Eco", "Pro", "Foldable", "Wireless", "Heavy Duty",
}

var blurbs = []string{
	"Built for daily use with a two year warranty.",
	"Lightweight design that packs down small.",
	"Energy efficient and easy to clean.",
	"Recycled materials with a durable finish.",
	"A customer favourite, now in more colors.",
}

// generate builds a deterministic catalog of n products spread over the
// fixed categories.
func generate(n int, seed int64, now time.Time) memory.Seed {
	rng := rand.New(rand.NewSource(seed))

	var out memory.Seed
	for i, c := range categories {
		out.Categories = append(out.Categories, memory.Category{
			ID:       int64(i + 1),
			Name:     c.Name,
			Slug:     slug.Make(c.Name),
			IsActive: true,
		})
	}

	var variantID int64
	for i := 0; i < n; i++ {
		id := int64(i + 1)
		catIdx := rng.Intn(len(categories))
		cat := categories[catIdx]
		noun := cat.Nouns[rng.Intn(len(cat.Nouns))]
		name := fmt.Sprintf("%s %s %d", adjectives[rng.Intn(len(adjectives))], noun, i+1)
		sku := fmt.Sprintf("%s-%06d", skuPrefix(cat.Name), id)

		// 5.00 to 500.00 in whole cents
		price := decimal.New(int64(500+rng.Intn(49500)), -2)

		p := memory.Product{
			ID:               id,
			Name:             name,
			Slug:             slug.Make(name),
			SKU:              sku,
			Description:      fmt.Sprintf("%s for the %s aisle. %s", noun, strings.ToLower(cat.Name), blurbs[rng.Intn(len(blurbs))]),
			ShortDescription: blurbs[rng.Intn(len(blurbs))],
			Price:            price,
			IsActive:         rng.Float64() >= 0.05,
			TrackInventory:   rng.Float64() >= 0.2,
			CreatedAt:        now.Add(-time.Duration(rng.Intn(365*24)) * time.Hour).UTC(),
			CategoryIDs:      []int64{int64(catIdx + 1)},
			AttributeValues:  make(map[int64][]int64),
		}

		// Occasionally cross-list into a second category.
		if rng.Float64() < 0.1 {
			if extra := int64(rng.Intn(len(categories)) + 1); extra != p.CategoryIDs[0] {
				p.CategoryIDs = append(p.CategoryIDs, extra)
			}
		}

		for _, a := range attributes {
			if rng.Float64() < 0.3 {
				continue
			}
			p.AttributeValues[a.ID] = []int64{pickValue(rng, a)}
		}

		variants := rng.Intn(4)
		for v := 0; v < variants; v++ {
			variantID++
			variant := memory.Variant{
				ID:            variantID,
				SKU:           fmt.Sprintf("%s-V%d", sku, v+1),
				StockQuantity: rng.Intn(3) * rng.Intn(20),
				IsActive:      rng.Float64() >= 0.1,
			}
			// Some variants are discounted 10 to 40 percent.
			if rng.Float64() < 0.3 {
				off := decimal.NewFromInt(int64(10 + rng.Intn(31))).Div(decimal.NewFromInt(100))
				vp := price.Mul(decimal.NewFromInt(1).Sub(off)).Round(2)
				variant.Price = &vp
			}
			p.Variants = append(p.Variants, variant)
		}

		out.Products = append(out.Products, p)
	}
	return out
}

func skuPrefix(category string) string {
	return strings.ToUpper(category[:3])
}

func pickValue(rng *rand.Rand, a attributeDef) int64 {
	ids := slices.Sorted(maps.Keys(a.Values))
	return ids[rng.Intn(len(ids))]
}
