package identity

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Sentinel errors for identity operations.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnauthenticated    = errors.New("not authenticated")
)

// DefaultSessionTTL is how long a session stays valid.
const DefaultSessionTTL = 24 * time.Hour

// Address is a postal address.
type Address struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// User is the identity attached to orders.
type User struct {
	ID      string
	Name    string
	Email   string
	Address *Address
}

// Account is a stored user together with its password. Passwords are kept
// and compared in plaintext; this is a demo store.
type Account struct {
	User     User
	Password string
}

// Session binds a bearer token to a user.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// UserRepository stores accounts. Emails are unique and compared
// case-insensitively.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, a *Account) error
}

// SessionStore keeps sessions until they expire or are deleted.
type SessionStore interface {
	Create(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// Service handles login, registration and session lookup.
type Service struct {
	users    UserRepository
	sessions SessionStore
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates an identity Service. A non-positive ttl selects
// DefaultSessionTTL.
func NewService(users UserRepository, sessions SessionStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, *User, error) {
	acc, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "find user")
	}
	if acc.Password != password {
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := s.openSession(ctx, acc.User.ID)
	if err != nil {
		return nil, nil, err
	}
	u := acc.User
	return sess, &u, nil
}

// Register validates f, creates the account and opens a session.
func (s *Service) Register(ctx context.Context, f RegisterForm) (*Session, *User, error) {
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}
	acc := &Account{
		User: User{
			ID:      uuid.NewString(),
			Name:    strings.TrimSpace(f.Name),
			Email:   NormalizeEmail(f.Email),
			Address: &Address{Country: "Brasil"},
		},
		Password: f.Password,
	}
	if err := s.users.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, nil, err
		}
		return nil, nil, errors.Wrap(err, "create user")
	}
	sess, err := s.openSession(ctx, acc.User.ID)
	if err != nil {
		return nil, nil, err
	}
	u := acc.User
	return sess, &u, nil
}

func (s *Service) openSession(ctx context.Context, userID string) (*Session, error) {
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess, s.ttl); err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	return &sess, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// CurrentUser resolves the user behind token.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		return nil, ErrUnauthenticated
	}
	u, err := s.users.FindByID(ctx, sess.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return u, nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
