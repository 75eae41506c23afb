//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
	"github.com/xenking/comeia-checkout/internal/domain/product"
)

// --- Helpers ---

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "comeia",
				"POSTGRES_PASSWORD": "comeia",
				"POSTGRES_DB":       "comeia",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://comeia:comeia@%s:%s/comeia?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

// --- Tests ---

func TestPostgres(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	products := NewProductRepository(pool)
	users := NewUserRepository(pool)
	orders := NewOrderRepository(pool)

	t.Run("Products", func(t *testing.T) {
		require.NoError(t, products.Upsert(ctx, product.Seed()))
		require.NoError(t, products.Upsert(ctx, product.Seed()), "upsert is idempotent")

		all, err := products.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, len(product.Seed()))

		p, err := products.GetByID(ctx, "mel-1")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("32.90").Equal(p.Price))
		assert.Equal(t, 25, p.Stock)

		_, err = products.GetByID(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)

		some, err := products.GetByIDs(ctx, []string{"mel-2", "mel-3", "missing"})
		require.NoError(t, err)
		assert.Len(t, some, 2)
	})

	t.Run("Users", func(t *testing.T) {
		require.NoError(t, users.Seed(ctx, identity.SeedAccounts()))
		require.NoError(t, users.Seed(ctx, identity.SeedAccounts()))

		acc, err := users.FindByEmail(ctx, " JOAO@email.com ")
		require.NoError(t, err)
		assert.Equal(t, "1", acc.User.ID)
		require.NotNil(t, acc.User.Address)
		assert.Equal(t, "São Paulo", acc.User.Address.City)

		err = users.Create(ctx, &identity.Account{
			User:     identity.User{ID: "dup", Name: "Dup", Email: "joao@email.com"},
			Password: "Abc123",
		})
		require.ErrorIs(t, err, identity.ErrEmailTaken)

		_, err = users.FindByID(ctx, "missing")
		require.ErrorIs(t, err, identity.ErrUserNotFound)
	})

	t.Run("Orders", func(t *testing.T) {
		p, err := products.GetByID(ctx, "mel-1")
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Millisecond)
		method := payment.Method{
			Type: payment.CreditCard,
			Data: payment.CreditCardData{Number: "4111 1111 1111 1111", Name: "JOAO", Expiry: "12/30", CVV: "123"},
		}.Redacted()
		o := &order.Order{
			ID:            "ORD-1",
			UserID:        "1",
			Items:         []cart.Item{{Product: *p, Quantity: 2}},
			PaymentMethod: method,
			Status:        order.StatusPending,
			Total:         decimal.RequireFromString("65.80"),
			Attempt:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		require.NoError(t, orders.Save(ctx, o))

		o.Status = order.StatusPaid
		o.TransactionID = "TXN-1"
		o.UpdatedAt = now.Add(time.Second)
		require.NoError(t, orders.Update(ctx, o))

		got, err := orders.FindByID(ctx, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, got.Status)
		assert.Equal(t, "TXN-1", got.TransactionID)
		assert.True(t, decimal.RequireFromString("65.80").Equal(got.Total))
		require.Len(t, got.Items, 1)
		assert.Equal(t, 2, got.Items[0].Quantity)
		assert.True(t, p.Price.Equal(got.Items[0].Product.Price))
		assert.Equal(t, method, got.PaymentMethod)

		list, err := orders.ListByUser(ctx, "1")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = orders.FindByID(ctx, "ORD-404")
		require.ErrorIs(t, err, order.ErrNotFound)
		require.ErrorIs(t, orders.Update(ctx, &order.Order{ID: "ORD-404"}), order.ErrNotFound)
	})
}
