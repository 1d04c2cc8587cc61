package devauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/festa-portal/portal-client/internal/errors"
)

func TestVerifier(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := minter{secret: testSecret, issuer: DefaultIssuer, ttl: time.Hour, now: func() time.Time { return now }}

	token, expires, err := m.mint("user-1", "a@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	v, err := NewVerifier(testSecret, "")
	require.NoError(t, err)
	v.now = func() time.Time { return now.Add(time.Minute) }

	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.True(t, claims.ExpiresAt.Equal(expires))

	t.Run("expired", func(t *testing.T) {
		v.now = func() time.Time { return now.Add(2 * time.Hour) }
		defer func() { v.now = func() time.Time { return now } }()
		_, err := v.Verify(context.Background(), token)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewVerifier([]byte("other"), DefaultIssuer)
		require.NoError(t, err)
		other.now = v.now
		_, err = other.Verify(context.Background(), token)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewVerifier(testSecret, "someone-else")
		require.NoError(t, err)
		other.now = v.now
		_, err = other.Verify(context.Background(), token)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "not.a.jwt")
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	_, err = NewVerifier(nil, "")
	require.Error(t, err)
}
