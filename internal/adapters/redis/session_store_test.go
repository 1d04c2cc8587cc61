package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festa-portal/portal-client/internal/cryptoutil"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func storedSession(deviceID string, expiresIn time.Duration) domainauth.StoredSession {
	return domainauth.StoredSession{
		DeviceID:      deviceID,
		UserID:        "user-123",
		Email:         "user@example.com",
		EmailVerified: true,
		RefreshToken:  "refresh-" + deviceID,
		ExpiresAt:     time.Now().Add(expiresIn),
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	session := storedSession("device-1", 30*time.Minute)
	require.NoError(t, store.Save(ctx, session))

	retrieved, err := store.Get(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, retrieved.UserID)
	assert.Equal(t, session.Email, retrieved.Email)
	assert.True(t, retrieved.EmailVerified)
	assert.Equal(t, session.RefreshToken, retrieved.RefreshToken)
	assert.WithinDuration(t, session.ExpiresAt, retrieved.ExpiresAt, time.Second)

	ttl := client.TTL(ctx, defaultPrefix+"device-1").Val()
	assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 5)
}

func TestSessionStore_GetNonExistent(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)

	_, err := store.Get(context.Background(), "non-existent")
	assert.Equal(t, ErrNotFound, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storedSession("device-delete", 30*time.Minute)))
	_, err := store.Get(ctx, "device-delete")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "device-delete"))
	require.NoError(t, store.Delete(ctx, "device-delete"))

	_, err = store.Get(ctx, "device-delete")
	assert.Equal(t, ErrNotFound, err)
}

func TestSessionStore_TTLExpiration(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storedSession("device-ttl", 100*time.Millisecond)))

	time.Sleep(200 * time.Millisecond)

	_, err := store.Get(ctx, "device-ttl")
	assert.Equal(t, ErrNotFound, err)
}

func TestSessionStore_NoExpiryUsesDefaultTTL(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStoreWithOptions(SessionStoreOptions{Client: client, DefaultTTL: time.Hour})
	ctx := context.Background()

	session := storedSession("device-noexp", 0)
	session.ExpiresAt = time.Time{}
	require.NoError(t, store.Save(ctx, session))

	ttl := client.TTL(ctx, defaultPrefix+"device-noexp").Val()
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	got, err := store.Get(ctx, "device-noexp")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.IsZero())
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStoreWithOptions(SessionStoreOptions{Client: client, Prefix: "test-prefix:"})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storedSession("prefix-test", 30*time.Minute)))

	exists := client.Exists(ctx, "test-prefix:prefix-test").Val()
	assert.Equal(t, int64(1), exists)

	retrieved, err := store.Get(ctx, "prefix-test")
	require.NoError(t, err)
	assert.Equal(t, "prefix-test", retrieved.DeviceID)
}

func TestSessionStore_SaveRejectsInvalidSessions(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	noDevice := storedSession("", 30*time.Minute)
	err := store.Save(ctx, noDevice)
	require.Error(t, err)
	assert.Equal(t, "device_id", apperrors.GetField(err))

	noToken := storedSession("device-x", 30*time.Minute)
	noToken.RefreshToken = ""
	err = store.Save(ctx, noToken)
	require.Error(t, err)
	assert.Equal(t, "refresh_token", apperrors.GetField(err))

	err = store.Save(ctx, storedSession("expired", -time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session is expired")
}

func TestSessionStore_GetEmptyID(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)

	_, err := store.Get(context.Background(), "")
	assert.Equal(t, ErrNotFound, err)
}

func TestSessionStore_SealsRefreshToken(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	key := make([]byte, 32)
	sealer, err := cryptoutil.NewAESGCMSealer(key)
	require.NoError(t, err)
	store := NewSessionStoreWithOptions(SessionStoreOptions{Client: client, Prefix: "sealed:", Sealer: sealer})
	ctx := context.Background()

	session := storedSession("sealed-device", 30*time.Minute)
	require.NoError(t, store.Save(ctx, session))

	raw := client.Get(ctx, "sealed:sealed-device").Val()
	assert.NotContains(t, raw, session.RefreshToken)

	retrieved, err := store.Get(ctx, "sealed-device")
	require.NoError(t, err)
	assert.Equal(t, session.RefreshToken, retrieved.RefreshToken)

	plain := NewSessionStoreWithOptions(SessionStoreOptions{Client: client, Prefix: "sealed:", Sealer: cryptoutil.PlainSealer{}})
	_, err = plain.Get(ctx, "sealed-device")
	require.Error(t, err)
}
