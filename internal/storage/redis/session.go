// Package redis stores sessions in Redis.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/comeia-checkout/internal/domain/identity"
)

const sessionKeyPrefix = "comeia:session:"

var _ identity.SessionStore = (*SessionStore)(nil)

// NewClient connects to addr and checks the connection.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}
	return c, nil
}

// SessionStore keeps sessions as Redis hashes that expire with the session.
type SessionStore struct {
	client redis.Cmdable
}

// NewSessionStore returns a SessionStore using client.
func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(token string) string { return sessionKeyPrefix + token }

// Create stores s for ttl.
func (s *SessionStore) Create(ctx context.Context, sess identity.Session, ttl time.Duration) error {
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = time.Now().Add(ttl)
	}
	key := sessionKey(sess.Token)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"user_id", sess.UserID,
			"expires_at", strconv.FormatInt(sess.ExpiresAt.UnixMilli(), 10),
		)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "store session")
	}
	return nil
}

// Get returns the session behind token.
func (s *SessionStore) Get(ctx context.Context, token string) (*identity.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	userID, ok := fields["user_id"]
	if !ok {
		return nil, identity.ErrSessionNotFound
	}
	sess := &identity.Session{Token: token, UserID: userID}
	if v := fields["expires_at"]; v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse session expiry")
		}
		sess.ExpiresAt = time.UnixMilli(ms)
	}
	return sess, nil
}

// Delete removes the session behind token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	n, err := s.client.Del(ctx, sessionKey(token)).Result()
	if err != nil {
		return errors.Wrap(err, "delete session")
	}
	if n == 0 {
		return identity.ErrSessionNotFound
	}
	return nil
}
