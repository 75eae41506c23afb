package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/checkout"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
	"github.com/xenking/comeia-checkout/internal/events"
)

func decodeCheckout(r *http.Request) (payment.MethodType, payment.Form, error) {
	var (
		method payment.MethodType
		form   payment.Form
	)
	err := readObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "paymentMethod":
			s, err := d.Str()
			method = payment.MethodType(s)
			return err
		case "pix":
			form.Pix = &payment.PixForm{}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "key" {
					return d.Skip()
				}
				var err error
				form.Pix.Key, err = d.Str()
				return err
			})
		case "creditCard":
			form.CreditCard = &payment.CardForm{}
			c := form.CreditCard
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "number":
					c.Number, err = d.Str()
				case "name":
					c.Name, err = d.Str()
				case "expiry":
					c.Expiry, err = d.Str()
				case "cvv":
					c.CVV, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			return d.Skip()
		}
	})
	return method, form, err
}

// submitCheckout places an order for the user's cart. The response carries
// the order as stored once processing started; the outcome follows on the
// order's event stream.
func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request, u *identity.User) {
	ctx := r.Context()

	method, form, err := decodeCheckout(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.carts.Get(ctx, u.ID)
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.checkout.Submit(ctx, checkout.SubmitRequest{
		User:   u,
		Items:  c.Items(),
		Method: method,
		Form:   form,
	}, h.clearCartOnPaid(ctx, u.ID))
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writeAccepted(w, r, u, o)
}

func (h *Handler) retryOrder(w http.ResponseWriter, r *http.Request, u *identity.User) {
	ctx := r.Context()
	o, err := h.checkout.Retry(ctx, u.ID, r.PathValue("id"), h.clearCartOnPaid(ctx, u.ID))
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writeAccepted(w, r, u, o)
}

func (h *Handler) writeAccepted(w http.ResponseWriter, r *http.Request, u *identity.User, o *order.Order) {
	if cur, err := h.checkout.Order(r.Context(), u.ID, o.ID); err == nil {
		o = cur
	}
	w.Header().Set("Location", "/api/orders/"+o.ID)
	writeJSON(w, http.StatusAccepted, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

// clearCartOnPaid empties the user's cart once a payment is approved.
func (h *Handler) clearCartOnPaid(ctx context.Context, userID string) checkout.Listener {
	ctx = context.WithoutCancel(ctx)
	return func(n checkout.Notification) {
		if n.Status != order.StatusPaid {
			return
		}
		_, err := h.carts.Update(ctx, userID, func(c *cart.Cart) error {
			c.Clear()
			return nil
		})
		if err != nil {
			zctx.From(ctx).Warn("Clear cart after payment", zap.String("order_id", n.OrderID), zap.Error(err))
		}
	}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, u *identity.User) {
	orders, err := h.checkout.Orders(r.Context(), u.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			h.encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, u *identity.User) {
	o, err := h.checkout.Order(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

// orderEvents streams the status of an order as Server-Sent Events. The
// current status is sent first; the stream ends after a terminal status.
func (h *Handler) orderEvents(w http.ResponseWriter, r *http.Request, u *identity.User) {
	ctx := r.Context()
	id := r.PathValue("id")

	if _, err := h.checkout.Order(ctx, u.ID, id); err != nil {
		fail(w, r, err)
		return
	}

	// Subscribe before reading the current state so no transition falls
	// between the two.
	ch, unsubscribe := h.hub.Subscribe(id)
	defer unsubscribe()

	o, err := h.checkout.Order(ctx, u.ID, id)
	if err != nil {
		fail(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	last := o.Status
	if err := writeEvent(w, rc, events.FromOrder(o)); err != nil || last.IsTerminal() {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Status == last {
				continue
			}
			last = ev.Status
			if err := writeEvent(w, rc, ev); err != nil || last.IsTerminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, ev events.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Status, ev.Bytes()); err != nil {
		return err
	}
	return rc.Flush()
}
