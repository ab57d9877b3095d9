package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/utafrali/catalog-search/internal/domain"
)

// Suggest returns up to limit distinct values from source containing term.
// Product names that start with term come before names that merely contain it.
func (r *Repository) Suggest(ctx context.Context, source domain.SuggestionSource, term string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(term)
	seen := make(map[string]struct{})
	var values []string
	add := func(v string) {
		if !contains(v, lower) {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}

	switch source {
	case domain.SourceProductName, domain.SourceProductSKU, domain.SourceVariantSKU:
		for _, p := range r.products {
			if !p.IsActive {
				continue
			}
			switch source {
			case domain.SourceProductName:
				add(p.Name)
			case domain.SourceProductSKU:
				add(p.SKU)
			default:
				for _, v := range p.Variants {
					if v.IsActive {
						add(v.SKU)
					}
				}
			}
		}
	case domain.SourceCategoryName:
		for _, c := range r.categories {
			if c.IsActive {
				add(c.Name)
			}
		}
	default:
		return nil, fmt.Errorf("unknown suggestion source %q", source)
	}

	slices.SortFunc(values, func(a, b string) int {
		if source == domain.SourceProductName {
			ap := strings.HasPrefix(strings.ToLower(a), lower)
			bp := strings.HasPrefix(strings.ToLower(b), lower)
			if ap != bp {
				if ap {
					return -1
				}
				return 1
			}
		}
		return strings.Compare(a, b)
	})

	if len(values) > limit {
		values = values[:limit]
	}
	return values, nil
}
