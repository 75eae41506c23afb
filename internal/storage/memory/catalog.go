// Package memory provides in-process implementations of the repositories.
// They back the server when no database is configured and the tests of the
// packages above them.
package memory

import (
	"context"
	"slices"

	"github.com/xenking/comeia-checkout/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository is a read-only catalog held in memory.
type ProductRepository struct {
	products []product.Product
	byID     map[string]int
}

// NewProductRepository returns a catalog of products, in the given order.
func NewProductRepository(products []product.Product) *ProductRepository {
	r := &ProductRepository{
		products: slices.Clone(products),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range r.products {
		r.byID[p.ID] = i
	}
	return r
}

// List returns every product.
func (r *ProductRepository) List(context.Context) ([]product.Product, error) {
	return slices.Clone(r.products), nil
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	i, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := r.products[i]
	return &p, nil
}

// GetByIDs returns the known products among ids. Unknown ids are skipped.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if i, ok := r.byID[id]; ok {
			out = append(out, r.products[i])
		}
	}
	return out, nil
}
