package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/comeia-checkout/internal/domain/product"
)

// MaxItemQuantity caps the quantity of a single cart line.
const MaxItemQuantity = 99

// Sentinel errors for cart operations.
var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrItemNotFound    = errors.New("item not in cart")
)

// QuantityLimitError indicates a line would exceed the stock of its product
// or MaxItemQuantity.
type QuantityLimitError struct {
	ProductID string
	Limit     int
}

func (e *QuantityLimitError) Error() string {
	return fmt.Sprintf("quantity for product %s exceeds limit of %d", e.ProductID, e.Limit)
}

// Item is a cart line: a product and how many units of it.
type Item struct {
	Product  product.Product
	Quantity int
}

// Subtotal returns price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Sum returns the total of items.
func Sum(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Cart holds at most one line per product id, in insertion order.
// A Cart is not safe for concurrent use; Store serializes access.
type Cart struct {
	items []Item
}

// New returns a cart holding items.
func New(items ...Item) *Cart {
	c := &Cart{}
	for _, it := range items {
		_ = c.Add(it.Product, it.Quantity)
	}
	return c
}

func limitFor(p product.Product) int {
	return min(MaxItemQuantity, p.Stock)
}

func (c *Cart) index(productID string) int {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Add puts qty units of p in the cart, merging with an existing line.
func (c *Cart) Add(p product.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	i := c.index(p.ID)
	next := qty
	if i >= 0 {
		next += c.items[i].Quantity
	}
	if limit := limitFor(p); next > limit {
		return &QuantityLimitError{ProductID: p.ID, Limit: limit}
	}
	if i >= 0 {
		c.items[i] = Item{Product: p, Quantity: next}
		return nil
	}
	c.items = append(c.items, Item{Product: p, Quantity: next})
	return nil
}

// SetQuantity replaces the quantity of a line. A quantity of zero or less
// removes it.
func (c *Cart) SetQuantity(productID string, qty int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if qty <= 0 {
		c.removeAt(i)
		return nil
	}
	p := c.items[i].Product
	if limit := limitFor(p); qty > limit {
		return &QuantityLimitError{ProductID: p.ID, Limit: limit}
	}
	c.items[i].Quantity = qty
	return nil
}

// Remove drops the line for productID, if any.
func (c *Cart) Remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.removeAt(i)
	}
}

func (c *Cart) removeAt(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// Clear empties the cart.
func (c *Cart) Clear() { c.items = nil }

// Items returns a snapshot of the cart lines.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Quantity returns the units of productID in the cart.
func (c *Cart) Quantity(productID string) int {
	if i := c.index(productID); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

// Count returns the total number of units.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Total returns the sum of all line subtotals.
func (c *Cart) Total() decimal.Decimal { return Sum(c.items) }

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.items) == 0 }

// Clone returns an independent copy.
func (c *Cart) Clone() *Cart { return &Cart{items: c.Items()} }

// Store keeps one cart per user. Update runs fn under the store's lock and
// persists the cart only if fn succeeds.
type Store interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Update(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error)
}
