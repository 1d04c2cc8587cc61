package shell

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festa-portal/portal-client/internal/adapters/devauth"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	authmocks "github.com/festa-portal/portal-client/internal/mocks/auth"
	"github.com/festa-portal/portal-client/internal/service"
)

// syncBuffer is a bytes.Buffer safe for the shell and effect goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeAuth struct {
	snap domainauth.Snapshot

	signInErr   error
	registerErr error
	registered  []domainauth.RegistrationPayload
	resets      []string
	verifySent  int
	signedOut   bool
}

func (f *fakeAuth) Snapshot() domainauth.Snapshot { return f.snap }

func (f *fakeAuth) Watch() (<-chan domainauth.Snapshot, func()) {
	ch := make(chan domainauth.Snapshot, 1)
	ch <- f.snap
	return ch, func() {}
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (domainauth.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	s := authmocks.NewFakeSession("u1")
	s.Mail = email
	return s, nil
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string) (domainauth.Session, error) {
	s := authmocks.NewFakeSession("u2")
	s.Mail = email
	s.Verified = false
	return s, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.signedOut = true
	return nil
}

func (f *fakeAuth) SendEmailVerification(context.Context) error {
	f.verifySent++
	return nil
}

func (f *fakeAuth) SendPasswordResetEmail(_ context.Context, email string) error {
	f.resets = append(f.resets, email)
	return nil
}

func (f *fakeAuth) InitProfile(_ context.Context, in domainauth.RegistrationPayload) (domainauth.Profile, error) {
	if f.registerErr != nil {
		return domainauth.Profile{}, f.registerErr
	}
	f.registered = append(f.registered, in)
	return domainauth.Profile{Name: in.Name, Category: in.Category, Role: domainauth.RoleGeneral}, nil
}

func newTestShell(t *testing.T, auth AuthClient, dev DevMailbox, in string) (*Shell, *Router, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	router := NewRouter("/")
	sh, err := New(Options{
		Auth:   auth,
		Router: router,
		Dev:    dev,
		In:     strings.NewReader(in),
		Out:    out,
	})
	require.NoError(t, err)
	return sh, router, out
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{Router: NewRouter("/")})
	require.Error(t, err)

	_, err = New(Options{Auth: &fakeAuth{}})
	require.Error(t, err)
}

func TestShell_RunExecutesUntilQuit(t *testing.T) {
	auth := &fakeAuth{snap: domainauth.SignedOut()}
	sh, router, out := newTestShell(t, auth, nil, "goto /about\nreset a@example.com\nquit\ngoto /never\n")

	require.NoError(t, sh.Run(context.Background()))

	assert.Equal(t, "/about", router.CurrentPath())
	assert.Equal(t, []string{"a@example.com"}, auth.resets)
	assert.Contains(t, out.String(), "password reset link sent to a@example.com")
}

func TestShell_RunStopsAtEndOfInput(t *testing.T) {
	sh, _, _ := newTestShell(t, &fakeAuth{snap: domainauth.SignedOut()}, nil, "status\n")
	require.NoError(t, sh.Run(context.Background()))
}

func TestShell_RunStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sh, _, _ := newTestShell(t, &fakeAuth{snap: domainauth.SignedOut()}, nil, "")
	// With empty input Run may see EOF or the canceled context first.
	err := sh.Run(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestShell_Exec(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown command", func(t *testing.T) {
		sh, _, out := newTestShell(t, &fakeAuth{}, nil, "")
		require.NoError(t, sh.Exec(ctx, "fly away"))
		assert.Contains(t, out.String(), `unknown command "fly"`)
	})

	t.Run("usage error", func(t *testing.T) {
		sh, _, out := newTestShell(t, &fakeAuth{}, nil, "")
		require.NoError(t, sh.Exec(ctx, "signin only-email"))
		assert.Contains(t, out.String(), "usage: signin <email> <password>")
	})

	t.Run("identity error is shown inline", func(t *testing.T) {
		auth := &fakeAuth{signInErr: apperrors.New(apperrors.ErrCodeInvalidCredentials, "bad")}
		sh, _, out := newTestShell(t, auth, nil, "")
		require.NoError(t, sh.Exec(ctx, "signin a@example.com nope"))
		assert.Contains(t, out.String(), "error: the email or password is incorrect")
	})

	t.Run("register sends the payload", func(t *testing.T) {
		auth := &fakeAuth{}
		sh, _, out := newTestShell(t, auth, nil, "")
		require.NoError(t, sh.Exec(ctx, "register 山田 太郎 ヤマダ タロウ 090-1234-5678 undergraduate_student"))
		require.Len(t, auth.registered, 1)
		got := auth.registered[0]
		assert.Equal(t, "山田", got.Name.Last)
		assert.Equal(t, "タロウ", got.Name.FirstKana)
		assert.Equal(t, domainauth.CategoryUndergraduate, got.Category)
		assert.Contains(t, out.String(), "welcome, 山田 太郎")
	})

	t.Run("register validation names the field", func(t *testing.T) {
		auth := &fakeAuth{registerErr: apperrors.ValidationField("phone_number", "phone_number must be a phone number of 10 or 11 digits")}
		sh, _, out := newTestShell(t, auth, nil, "")
		require.NoError(t, sh.Exec(ctx, "register a b c d e other"))
		assert.Contains(t, out.String(), "invalid phone_number:")
	})

	t.Run("signup sends verification for unverified account", func(t *testing.T) {
		auth := &fakeAuth{}
		sh, _, out := newTestShell(t, auth, nil, "")
		require.NoError(t, sh.Exec(ctx, "signup new@example.com secret123"))
		assert.Equal(t, 1, auth.verifySent)
		assert.Contains(t, out.String(), "account created for new@example.com")
	})

	t.Run("signout", func(t *testing.T) {
		auth := &fakeAuth{}
		sh, _, _ := newTestShell(t, auth, nil, "")
		require.NoError(t, sh.Exec(ctx, "signout"))
		assert.True(t, auth.signedOut)
	})

	t.Run("back", func(t *testing.T) {
		sh, router, out := newTestShell(t, &fakeAuth{}, nil, "")
		require.NoError(t, sh.Exec(ctx, "back"))
		assert.Contains(t, out.String(), "no previous route")
		require.NoError(t, sh.Exec(ctx, "goto /forms"))
		require.NoError(t, sh.Exec(ctx, "back"))
		assert.Equal(t, "/", router.CurrentPath())
	})

	t.Run("exit quits", func(t *testing.T) {
		sh, _, _ := newTestShell(t, &fakeAuth{}, nil, "")
		assert.ErrorIs(t, sh.Exec(ctx, "exit"), errQuit)
	})
}

func TestShell_HelpHidesDevCommandsWithoutDevProvider(t *testing.T) {
	sh, _, out := newTestShell(t, &fakeAuth{}, nil, "")
	require.NoError(t, sh.Exec(context.Background(), "help"))
	assert.Contains(t, out.String(), "signin <email> <password>")
	assert.NotContains(t, out.String(), "outbox")

	require.NoError(t, sh.Exec(context.Background(), "outbox"))
	assert.Contains(t, out.String(), `unknown command "outbox"`)
}

func TestShell_StatusAndPages(t *testing.T) {
	auth := &fakeAuth{snap: domainauth.BothSignedIn(
		domainauth.Profile{
			IdentityID: "u1",
			Name:       domainauth.Name{First: "Taro", Last: "Yamada"},
			Role:       domainauth.RoleCommittee,
			Category:   domainauth.CategoryOther,
		},
		authmocks.NewFakeSession("u1"),
	)}
	sh, _, out := newTestShell(t, auth, nil, "")

	require.NoError(t, sh.Exec(context.Background(), "status"))
	status := out.String()
	assert.Contains(t, status, "both_signed_in")
	assert.Contains(t, status, "committee")
	assert.Contains(t, status, "Yamada Taro")

	require.NoError(t, sh.Exec(context.Background(), "pages"))
	pages := out.String()
	assert.Contains(t, pages, "PATH")
	assert.Contains(t, pages, "/committee/forms")
	assert.Contains(t, pages, "/admin")
}

func TestShell_Render(t *testing.T) {
	sh, _, out := newTestShell(t, &fakeAuth{}, nil, "")
	session := authmocks.NewFakeSession("u1")
	outcome := service.Outcome{
		Path:     "/register",
		Page:     sh.pages.Lookup("/register"),
		Snapshot: domainauth.SessionOnly(session),
		View:     service.ViewContent,
	}

	sh.Render(outcome)
	sh.Render(outcome)
	assert.Equal(t, 1, strings.Count(out.String(), "[page] Complete registration /register"))
	assert.Contains(t, out.String(), "complete your profile: register")

	sh.Render(service.Outcome{Path: "/admin", Snapshot: domainauth.SignedOut(), View: service.ViewRedirecting, Target: "/login"})
	assert.Contains(t, out.String(), "[redirect] /admin -> /login")

	sh.Render(service.Outcome{Path: "/", Snapshot: domainauth.Unchecked(), View: service.ViewLoading})
	assert.Contains(t, out.String(), "[loading] /")
}

func TestShell_DevMailboxFlow(t *testing.T) {
	dev, err := devauth.NewProvider(devauth.Config{
		TokenSecret: []byte("shell-test-secret"),
		BcryptCost:  4,
		Accounts:    []devauth.Account{{Email: "dev@example.com", Password: "password1"}},
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = dev.SignIn(ctx, "dev@example.com", "password1")
	require.NoError(t, err)
	require.NoError(t, dev.SendEmailVerification(ctx))
	mail, ok := dev.LastMail(devauth.MailVerifyEmail, "dev@example.com")
	require.True(t, ok)

	sh, _, out := newTestShell(t, &fakeAuth{}, dev, "")
	require.NoError(t, sh.Exec(ctx, "outbox"))
	assert.Contains(t, out.String(), mail.Code)

	require.NoError(t, sh.Exec(ctx, "apply "+mail.Code))
	assert.Contains(t, out.String(), "email verified")

	require.NoError(t, sh.Exec(ctx, "apply "+mail.Code))
	assert.Contains(t, out.String(), "invalid code:")
}

func TestShell_RedirectsFollowAuthState(t *testing.T) {
	identity := authmocks.NewFakeIdentityProvider()
	profiles := authmocks.NewFakeProfileFetcher()
	profiles.SetResult("token-alice", domainauth.Profile{ID: "p1", IdentityID: "alice", Role: domainauth.RoleGeneral}, nil)
	identity.SignInFunc = func(context.Context, string, string) (domainauth.Session, error) {
		session := authmocks.NewFakeSession("alice")
		identity.Emit(session)
		return session, nil
	}

	machine, err := service.NewAuthMachine(service.AuthMachineOptions{Identity: identity, Profiles: profiles})
	require.NoError(t, err)
	t.Cleanup(machine.Close)

	out := &syncBuffer{}
	router := NewRouter("/admin")
	sh, err := New(Options{Auth: machine, Router: router, In: strings.NewReader(""), Out: out})
	require.NoError(t, err)
	effect, err := service.NewRedirectEffect(service.RedirectEffectOptions{
		Auth:      machine,
		Navigator: router,
		OnOutcome: sh.Render,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	effectDone := make(chan struct{})
	go func() {
		defer close(effectDone)
		_ = effect.Run(ctx)
	}()

	require.NoError(t, machine.Init(ctx))
	identity.Emit(nil)
	require.Eventually(t, func() bool { return router.CurrentPath() == "/login" }, time.Second, 5*time.Millisecond)

	require.NoError(t, sh.Exec(ctx, "signin alice@example.com pw"))
	require.Eventually(t, func() bool { return router.CurrentPath() == "/" }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[page] Home / as general")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-effectDone
}
