package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/comeia-checkout/internal/domain/identity"
)

var (
	_ identity.UserRepository = (*UserRepository)(nil)
	_ identity.SessionStore   = (*SessionStore)(nil)
)

// UserRepository stores accounts in memory, indexed by id and email.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*identity.Account
	byEmail map[string]string
}

// NewUserRepository returns a repository holding accounts.
func NewUserRepository(accounts ...identity.Account) *UserRepository {
	r := &UserRepository{
		byID:    make(map[string]*identity.Account, len(accounts)),
		byEmail: make(map[string]string, len(accounts)),
	}
	for i := range accounts {
		_ = r.Create(context.Background(), &accounts[i])
	}
	return r
}

// FindByEmail returns the account registered with email.
func (r *UserRepository) FindByEmail(_ context.Context, email string) (*identity.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[identity.NormalizeEmail(email)]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return cloneAccount(r.byID[id]), nil
}

// FindByID returns the user with the given id.
func (r *UserRepository) FindByID(_ context.Context, id string) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &cloneAccount(acc).User, nil
}

// Create stores a new account.
func (r *UserRepository) Create(_ context.Context, a *identity.Account) error {
	email := identity.NormalizeEmail(a.User.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[email]; ok {
		return identity.ErrEmailTaken
	}
	acc := cloneAccount(a)
	acc.User.Email = email
	r.byID[acc.User.ID] = acc
	r.byEmail[email] = acc.User.ID
	return nil
}

func cloneAccount(a *identity.Account) *identity.Account {
	c := *a
	if a.User.Address != nil {
		addr := *a.User.Address
		c.User.Address = &addr
	}
	return &c
}

// SessionStore keeps sessions in memory. Expired sessions are dropped on
// access.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]identity.Session
	now      func() time.Time
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]identity.Session),
		now:      time.Now,
	}
}

// Create stores s for ttl.
func (s *SessionStore) Create(_ context.Context, sess identity.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		sess.ExpiresAt = s.now().Add(ttl)
	}
	s.sessions[sess.Token] = sess
	return nil
}

// Get returns the session behind token.
func (s *SessionStore) Get(_ context.Context, token string) (*identity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, identity.ErrSessionNotFound
	}
	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return nil, identity.ErrSessionNotFound
	}
	return &sess, nil
}

// Delete removes the session behind token.
func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return identity.ErrSessionNotFound
	}
	delete(s.sessions, token)
	return nil
}
