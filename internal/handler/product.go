package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/comeia-checkout/internal/domain/product"
)

// listProducts returns the catalog, filtered by the category and q query
// parameters.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	all, err := h.products.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	q := r.URL.Query()
	filtered := product.Filter{Category: q.Get("category"), Query: q.Get("q")}.Apply(all)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range filtered {
			h.encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

// listCategories returns the filter options: AllCategories first, then the
// catalog's categories.
func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	all, err := h.products.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		e.Str(product.AllCategories)
		for _, c := range product.Categories(all) {
			e.Str(c)
		}
		e.ArrEnd()
	})
}
