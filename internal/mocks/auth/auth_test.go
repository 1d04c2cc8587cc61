package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
)

func TestFakeIdentityProvider_ReplaysLastSession(t *testing.T) {
	p := NewFakeIdentityProvider()

	var got []domainauth.Session
	unsubscribe := p.Subscribe(func(s domainauth.Session) { got = append(got, s) })
	assert.Empty(t, got, "nothing emitted yet")

	session := NewFakeSession("alice")
	p.Emit(session)
	require.Len(t, got, 1)

	var late []domainauth.Session
	p.Subscribe(func(s domainauth.Session) { late = append(late, s) })
	require.Len(t, late, 1)
	assert.Equal(t, "alice", late[0].UserID())

	unsubscribe()
	assert.Equal(t, 1, p.Listeners())
}

func TestFakeSession_Token(t *testing.T) {
	s := NewFakeSession("bob")
	s.RefreshedToken = "fresh"

	tok, err := s.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "token-bob", tok)

	tok, err = s.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, s.Refreshes())
}

func TestFakeProfileFetcher_UnscriptedIsNotProvisioned(t *testing.T) {
	f := NewFakeProfileFetcher()
	_, err := f.GetProfile(context.Background(), "unknown")
	assert.True(t, apperrors.IsNotProvisioned(err))
	assert.Equal(t, []string{"unknown"}, f.Calls())
}

func TestFakeProfileFetcher_HoldRespectsContext(t *testing.T) {
	f := NewFakeProfileFetcher()
	f.SetResult("tok", domainauth.Profile{ID: "p1"}, nil)
	release := f.Hold("tok")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.GetProfile(ctx, "tok")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	p, err := f.GetProfile(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestFakeNavigator_RecordsNavigations(t *testing.T) {
	n := NewFakeNavigator("/")
	ch, stop := n.Watch()
	defer stop()

	n.SetPath("/forms")
	n.Navigate("/login")
	assert.Equal(t, "/login", n.CurrentPath())
	assert.Equal(t, []string{"/login"}, n.Navigations())
	assert.Equal(t, "/login", <-ch)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	sess := domainauth.StoredSession{DeviceID: "laptop", UserID: "u1", RefreshToken: "r1"}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "laptop")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	require.NoError(t, store.Delete(ctx, "laptop"))
	_, err = store.Get(ctx, "laptop")
	assert.Equal(t, ErrNotFound, err)

	err = store.Save(ctx, domainauth.StoredSession{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device ID cannot be empty")
}
