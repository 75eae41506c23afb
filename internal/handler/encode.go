package handler

import (
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
	"github.com/xenking/comeia-checkout/internal/domain/product"
)

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(h.imageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("image")
	e.Str(h.imageURL(p.Image))
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.ObjEnd()
}

func (h *Handler) encodeItems(e *jx.Encoder, items []cart.Item) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("product")
		h.encodeProduct(e, it.Product)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("subtotal")
		money(e, it.Subtotal())
		e.ObjEnd()
	}
	e.ArrEnd()
}

func (h *Handler) encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("items")
	h.encodeItems(e, c.Items())
	e.FieldStart("count")
	e.Int(c.Count())
	e.FieldStart("total")
	money(e, c.Total())
	e.ObjEnd()
}

func encodeUser(e *jx.Encoder, u *identity.User) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(u.ID)
	e.FieldStart("name")
	e.Str(u.Name)
	e.FieldStart("email")
	e.Str(u.Email)
	if a := u.Address; a != nil {
		e.FieldStart("address")
		e.ObjStart()
		e.FieldStart("street")
		e.Str(a.Street)
		e.FieldStart("city")
		e.Str(a.City)
		e.FieldStart("state")
		e.Str(a.State)
		e.FieldStart("zipCode")
		e.Str(a.ZipCode)
		e.FieldStart("country")
		e.Str(a.Country)
		e.ObjEnd()
	}
	e.ObjEnd()
}

func encodeSession(e *jx.Encoder, s *identity.Session, u *identity.User) {
	e.ObjStart()
	e.FieldStart("token")
	e.Str(s.Token)
	e.FieldStart("expiresAt")
	e.Str(s.ExpiresAt.UTC().Format(time.RFC3339))
	e.FieldStart("user")
	encodeUser(e, u)
	e.ObjEnd()
}

// encodeMethod writes the payment method. Card data is always redacted.
func encodeMethod(e *jx.Encoder, m payment.Method) {
	m = m.Redacted()
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(m.Type))
	switch d := m.Data.(type) {
	case payment.PixData:
		e.FieldStart("pix")
		e.ObjStart()
		e.FieldStart("key")
		e.Str(d.Key)
		e.ObjEnd()
	case payment.CreditCardData:
		e.FieldStart("creditCard")
		e.ObjStart()
		e.FieldStart("number")
		e.Str(d.Number)
		e.FieldStart("name")
		e.Str(d.Name)
		e.FieldStart("expiry")
		e.Str(d.Expiry)
		e.ObjEnd()
	}
	e.ObjEnd()
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("items")
	h.encodeItems(e, o.Items)
	e.FieldStart("paymentMethod")
	encodeMethod(e, o.PaymentMethod)
	e.FieldStart("status")
	e.Str(o.Status.String())
	e.FieldStart("total")
	money(e, o.Total)
	if o.TransactionID != "" {
		e.FieldStart("transactionId")
		e.Str(o.TransactionID)
	}
	if o.FailureReason != "" {
		e.FieldStart("error")
		e.Str(o.FailureReason)
	}
	e.FieldStart("retryable")
	e.Bool(o.Status.IsFailure())
	e.FieldStart("attempt")
	e.Int(o.Attempt)
	if o.PaymentMethod.Type == payment.Boleto && h.boletos != nil {
		b := h.boletos.IssueBoleto(o.ID, o.CreatedAt)
		e.FieldStart("boleto")
		e.ObjStart()
		e.FieldStart("url")
		e.Str(b.URL)
		e.FieldStart("dueDate")
		e.Str(b.DueDate.UTC().Format(time.DateOnly))
		e.ObjEnd()
	}
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("updatedAt")
	e.Str(o.UpdatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}
