package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/comeia-checkout/internal/domain/product"
)

func newTestProduct(id, price string, stock int) product.Product {
	return product.Product{ID: id, Name: id, Price: decimal.RequireFromString(price), Stock: stock}
}

func TestCart_AddMergesQuantity(t *testing.T) {
	p := newTestProduct("mel-1", "32.90", 25)
	c := New()

	require.NoError(t, c.Add(p, 1))
	require.NoError(t, c.Add(p, 2))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("98.70").Equal(c.Total()))
}

func TestCart_AddRejects(t *testing.T) {
	tests := []struct {
		name      string
		stock     int
		existing  int
		add       int
		wantLimit int
		wantErr   error
	}{
		{name: "zero quantity", stock: 10, add: 0, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", stock: 10, add: -3, wantErr: ErrInvalidQuantity},
		{name: "beyond stock", stock: 5, existing: 4, add: 2, wantLimit: 5},
		{name: "beyond line cap", stock: 500, existing: 98, add: 2, wantLimit: MaxItemQuantity},
		{name: "out of stock", stock: 0, add: 1, wantLimit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProduct("p", "1.00", tt.stock)
			c := New()
			if tt.existing > 0 {
				require.NoError(t, c.Add(p, tt.existing))
			}

			err := c.Add(p, tt.add)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			var limErr *QuantityLimitError
			require.ErrorAs(t, err, &limErr)
			assert.Equal(t, tt.wantLimit, limErr.Limit)
			assert.Equal(t, tt.existing, c.Quantity("p"), "cart unchanged")
		})
	}
}

func TestCart_SetQuantity(t *testing.T) {
	a := newTestProduct("a", "10.00", 20)
	b := newTestProduct("b", "5.50", 20)

	c := New(Item{Product: a, Quantity: 1}, Item{Product: b, Quantity: 2})

	require.NoError(t, c.SetQuantity("a", 4))
	assert.Equal(t, 4, c.Quantity("a"))
	assert.Len(t, c.Items(), 2, "replace, never append")

	require.NoError(t, c.SetQuantity("b", 0))
	assert.Equal(t, 0, c.Quantity("b"))
	assert.Len(t, c.Items(), 1)

	require.ErrorIs(t, c.SetQuantity("missing", 1), ErrItemNotFound)

	var limErr *QuantityLimitError
	require.ErrorAs(t, c.SetQuantity("a", 21), &limErr)
}

func TestCart_RemoveClearCount(t *testing.T) {
	a := newTestProduct("a", "10.00", 20)
	b := newTestProduct("b", "5.50", 20)
	c := New(Item{Product: a, Quantity: 2}, Item{Product: b, Quantity: 3})

	assert.Equal(t, 5, c.Count())
	assert.True(t, decimal.RequireFromString("36.50").Equal(c.Total()))

	c.Remove("a")
	c.Remove("not-there")
	assert.Equal(t, 3, c.Count())

	c.Clear()
	assert.True(t, c.Empty())
	assert.True(t, decimal.Zero.Equal(c.Total()))
}

func TestCart_ItemsIsSnapshot(t *testing.T) {
	c := New(Item{Product: newTestProduct("a", "1.00", 5), Quantity: 1})

	items := c.Items()
	items[0].Quantity = 5
	clone := c.Clone()
	require.NoError(t, clone.SetQuantity("a", 3))

	assert.Equal(t, 1, c.Quantity("a"))
}

func TestSum(t *testing.T) {
	items := []Item{
		{Product: newTestProduct("a", "10.00", 5), Quantity: 2},
		{Product: newTestProduct("b", "0.10", 5), Quantity: 3},
	}
	assert.True(t, decimal.RequireFromString("20.30").Equal(Sum(items)))
	assert.True(t, decimal.Zero.Equal(Sum(nil)))
}
