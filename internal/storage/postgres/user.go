package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/comeia-checkout/internal/domain/identity"
)

const (
	userColumns = `id, name, email, password, street, city, state, zip_code, country`

	insertUserSQL = `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	upsertUserSQL = insertUserSQL + ` ON CONFLICT (id) DO NOTHING`

	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

var _ identity.UserRepository = (*UserRepository)(nil)

// UserRepository implements identity.UserRepository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByEmail returns the account registered with email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	return r.one(ctx, getUserByEmailSQL, identity.NormalizeEmail(email))
}

// FindByID returns the user with the given id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*identity.User, error) {
	acc, err := r.one(ctx, getUserByIDSQL, id)
	if err != nil {
		return nil, err
	}
	return &acc.User, nil
}

// Create stores a new account. A taken email yields identity.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, a *identity.Account) error {
	if _, err := r.pool.Exec(ctx, insertUserSQL, userArgs(a)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return identity.ErrEmailTaken
		}
		return errors.Wrapf(err, "create user %q", a.User.ID)
	}
	return nil
}

// Seed inserts the accounts that do not exist yet.
func (r *UserRepository) Seed(ctx context.Context, accounts []identity.Account) error {
	batch := &pgx.Batch{}
	for i := range accounts {
		batch.Queue(upsertUserSQL, userArgs(&accounts[i])...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "seed users")
	}
	return nil
}

func (r *UserRepository) one(ctx context.Context, query string, arg string) (*identity.Account, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	acc, err := pgx.CollectExactlyOneRow(rows, scanAccount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &acc, nil
}

func userArgs(a *identity.Account) []any {
	var addr identity.Address
	if a.User.Address != nil {
		addr = *a.User.Address
	}
	return []any{
		a.User.ID, a.User.Name, identity.NormalizeEmail(a.User.Email), a.Password,
		addr.Street, addr.City, addr.State, addr.ZipCode, addr.Country,
	}
}

func scanAccount(row pgx.CollectableRow) (identity.Account, error) {
	var (
		acc  identity.Account
		addr identity.Address
	)
	err := row.Scan(
		&acc.User.ID, &acc.User.Name, &acc.User.Email, &acc.Password,
		&addr.Street, &addr.City, &addr.State, &addr.ZipCode, &addr.Country,
	)
	if addr != (identity.Address{}) {
		acc.User.Address = &addr
	}
	return acc, err
}
