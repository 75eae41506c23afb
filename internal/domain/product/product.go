package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// AllCategories selects every category when used as a Filter category.
const AllCategories = "Todos"

// Product represents a catalog item available for purchase. Products are
// immutable once fetched; checkout never decrements Stock.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Description string
	Image       string
	Category    string
	Stock       int
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Filter narrows a product listing by category and free-text query.
type Filter struct {
	Category string
	Query    string
}

// Match reports whether p satisfies the filter. The query is matched
// case-insensitively against name, description and category.
func (f Filter) Match(p Product) bool {
	if f.Category != "" && f.Category != AllCategories && p.Category != f.Category {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Category), q)
}

// Apply returns the products matching the filter, preserving order.
func (f Filter) Apply(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the distinct categories in catalog order.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	var out []string
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}
