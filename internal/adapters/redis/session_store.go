// Package redis persists identity-provider sessions in Redis so a restarted
// client can resume without asking for credentials again.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/festa-portal/portal-client/internal/cryptoutil"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/ports"
)

const (
	defaultPrefix = "portal:session:"
	// DefaultTTL applies when a stored session carries no expiry.
	DefaultTTL = 30 * 24 * time.Hour
)

// ErrNotFound is returned when no session is stored for a device.
var ErrNotFound error = apperrors.NotFound("session not found")

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStoreOptions configures SessionStore.
type SessionStoreOptions struct {
	Client     redis.UniversalClient // Required
	Prefix     string                // Optional: key prefix, defaults to "portal:session:"
	DefaultTTL time.Duration         // Optional: TTL for sessions without expiry
	Sealer     cryptoutil.Sealer     // Optional: seals refresh tokens at rest
}

// SessionStore is a Redis-backed ports.SessionStore keyed by device id.
// Keys expire with the stored session's ExpiresAt.
type SessionStore struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	sealer     cryptoutil.Sealer
	now        func() time.Time
}

// NewSessionStore creates a Redis session store with the default key prefix.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithOptions(SessionStoreOptions{Client: client})
}

// NewSessionStoreWithOptions creates a Redis session store.
func NewSessionStoreWithOptions(opts SessionStoreOptions) *SessionStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionStore{
		client:     opts.Client,
		prefix:     prefix,
		defaultTTL: ttl,
		sealer:     opts.Sealer,
		now:        time.Now,
	}
}

func (s *SessionStore) key(deviceID string) string {
	return s.prefix + deviceID
}

// Save stores sess under its device id, replacing any previous session.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.StoredSession) error {
	if sess.DeviceID == "" {
		return apperrors.ValidationField("device_id", "device ID cannot be empty")
	}
	if sess.RefreshToken == "" {
		return apperrors.ValidationField("refresh_token", "refresh token cannot be empty")
	}

	ttl := s.defaultTTL
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return apperrors.Validation("session is expired")
		}
	}

	if s.sealer != nil {
		sealed, err := s.sealer.Seal([]byte(sess.RefreshToken))
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
		sess.RefreshToken = sealed
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sess.DeviceID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get loads the session stored for deviceID. Missing and expired sessions
// return ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, deviceID string) (domainauth.StoredSession, error) {
	if deviceID == "" {
		return domainauth.StoredSession{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.key(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.StoredSession{}, ErrNotFound
		}
		return domainauth.StoredSession{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.StoredSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.StoredSession{}, fmt.Errorf("unmarshal session: %w", err)
	}

	// Redis expiry is second-granular; the stored timestamp is authoritative.
	if !sess.ExpiresAt.IsZero() && s.now().After(sess.ExpiresAt) {
		if err := s.Delete(ctx, deviceID); err != nil {
			return domainauth.StoredSession{}, fmt.Errorf("cleanup expired session: %w", err)
		}
		return domainauth.StoredSession{}, ErrNotFound
	}

	if s.sealer != nil {
		token, err := s.sealer.Open(sess.RefreshToken)
		if err != nil {
			return domainauth.StoredSession{}, fmt.Errorf("open refresh token: %w", err)
		}
		sess.RefreshToken = string(token)
	}
	return sess, nil
}

// Delete removes the session stored for deviceID. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(deviceID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
