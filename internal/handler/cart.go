package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request, u *identity.User) {
	c, err := h.carts.Get(r.Context(), u.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, c) })
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request, u *identity.User) {
	var (
		productID string
		qty       = 1
	)
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			productID, err = d.Str()
		case "quantity":
			qty, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.updateCart(w, r, u, func(c *cart.Cart) error { return c.Add(*p, qty) })
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request, u *identity.User) {
	var qty int
	err := readObject(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		qty, err = d.Int()
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	id := r.PathValue("productId")
	h.updateCart(w, r, u, func(c *cart.Cart) error { return c.SetQuantity(id, qty) })
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request, u *identity.User) {
	id := r.PathValue("productId")
	h.updateCart(w, r, u, func(c *cart.Cart) error {
		c.Remove(id)
		return nil
	})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request, u *identity.User) {
	h.updateCart(w, r, u, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request, u *identity.User, fn func(*cart.Cart) error) {
	c, err := h.carts.Update(r.Context(), u.ID, fn)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, c) })
}
