package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
)

const (
	orderColumns = `id, user_id, items, payment_method, payment_data, status, total,
		transaction_id, failure_reason, attempt, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	updateOrderSQL = `UPDATE orders
		SET status = $2, transaction_id = $3, failure_reason = $4, updated_at = $5
		WHERE id = $1`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items
// and the payment payload are stored as JSONB; card numbers are expected to
// arrive redacted.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Save persists a new order.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, encodeItems(o.Items),
		string(o.PaymentMethod.Type), encodePaymentData(o.PaymentMethod),
		o.Status.String(), o.Total,
		o.TransactionID, o.FailureReason, o.Attempt,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Update writes the mutable fields of an existing order: status, outcome
// and update time.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, o.Status.String(), o.TransactionID, o.FailureReason, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// FindByID returns the order with the given id.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// ListByUser returns the orders of userID, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of %q", userID)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		items       []byte
		methodType  string
		paymentData []byte
		status      string
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &items, &methodType, &paymentData, &status, &o.Total,
		&o.TransactionID, &o.FailureReason, &o.Attempt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return o, err
	}
	o.Status = order.Status(status)

	var err error
	if o.Items, err = decodeItems(items); err != nil {
		return o, err
	}
	if o.PaymentMethod, err = decodePaymentData(payment.MethodType(methodType), paymentData); err != nil {
		return o, err
	}
	return o, nil
}
