package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight, controllable, and suitable for race tests without codegen.

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*FakeIdentityProvider)(nil)
	_ ports.ProfileFetcher   = (*FakeProfileFetcher)(nil)
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
	_ ports.Navigator        = (*FakeNavigator)(nil)
	_ domainauth.Session     = (*FakeSession)(nil)
)

// FakeSession is a session whose token and verification flag are set by the test.
type FakeSession struct {
	ID       string
	Mail     string
	Verified bool
	// TokenValue is returned by Token; defaults to "token-<ID>".
	TokenValue string
	// RefreshedToken is returned by Token(ctx, true) when set.
	RefreshedToken string
	TokenErr       error

	mu        sync.Mutex
	refreshes int
}

// NewFakeSession creates a verified session for id.
func NewFakeSession(id string) *FakeSession {
	return &FakeSession{ID: id, Mail: id + "@example.com", Verified: true}
}

func (s *FakeSession) UserID() string      { return s.ID }
func (s *FakeSession) Email() string       { return s.Mail }
func (s *FakeSession) EmailVerified() bool { return s.Verified }

func (s *FakeSession) Token(_ context.Context, forceRefresh bool) (string, error) {
	if s.TokenErr != nil {
		return "", s.TokenErr
	}
	if forceRefresh {
		s.mu.Lock()
		s.refreshes++
		s.mu.Unlock()
		if s.RefreshedToken != "" {
			return s.RefreshedToken, nil
		}
	}
	if s.TokenValue != "" {
		return s.TokenValue, nil
	}
	return "token-" + s.ID, nil
}

// Refreshes reports how many times a forced refresh was requested.
func (s *FakeSession) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// FakeIdentityProvider lets a test emit session changes and script operations.
type FakeIdentityProvider struct {
	SignInFunc            func(ctx context.Context, email, password string) (domainauth.Session, error)
	SignUpFunc            func(ctx context.Context, email, password string) (domainauth.Session, error)
	SignOutFunc           func(ctx context.Context) error
	SendVerificationFunc  func(ctx context.Context) error
	SendPasswordResetFunc func(ctx context.Context, email string) error

	mu        sync.Mutex
	listeners map[int]ports.SessionListener
	nextID    int
	current   domainauth.Session
	emitted   bool
}

// NewFakeIdentityProvider creates a provider that has not reported any state yet.
func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{listeners: make(map[int]ports.SessionListener)}
}

// Subscribe registers listener and replays the last emitted session, if any.
func (p *FakeIdentityProvider) Subscribe(listener ports.SessionListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	replay, current := p.emitted, p.current
	p.mu.Unlock()

	if replay {
		listener(current)
	}
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Emit delivers session (nil for signed out) to every listener synchronously.
func (p *FakeIdentityProvider) Emit(session domainauth.Session) {
	p.mu.Lock()
	p.current = session
	p.emitted = true
	listeners := make([]ports.SessionListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(session)
	}
}

// Listeners reports the number of active subscriptions.
func (p *FakeIdentityProvider) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *FakeIdentityProvider) SignIn(ctx context.Context, email, password string) (domainauth.Session, error) {
	if p.SignInFunc != nil {
		return p.SignInFunc(ctx, email, password)
	}
	return NewFakeSession(email), nil
}

func (p *FakeIdentityProvider) SignUp(ctx context.Context, email, password string) (domainauth.Session, error) {
	if p.SignUpFunc != nil {
		return p.SignUpFunc(ctx, email, password)
	}
	return NewFakeSession(email), nil
}

func (p *FakeIdentityProvider) SignOut(ctx context.Context) error {
	if p.SignOutFunc != nil {
		return p.SignOutFunc(ctx)
	}
	return nil
}

func (p *FakeIdentityProvider) SendEmailVerification(ctx context.Context) error {
	if p.SendVerificationFunc != nil {
		return p.SendVerificationFunc(ctx)
	}
	return nil
}

func (p *FakeIdentityProvider) SendPasswordResetEmail(ctx context.Context, email string) error {
	if p.SendPasswordResetFunc != nil {
		return p.SendPasswordResetFunc(ctx, email)
	}
	return nil
}

// ProfileResult is a scripted GetProfile/CreateProfile outcome.
type ProfileResult struct {
	Profile domainauth.Profile
	Err     error
}

// FakeProfileFetcher answers profile lookups from a per-token script.
// Lookups for a held token block until the hold is released or ctx ends,
// which lets tests decide the completion order of concurrent fetches.
type FakeProfileFetcher struct {
	CreateFunc func(ctx context.Context, token string, in domainauth.RegistrationPayload) (domainauth.Profile, error)

	mu      sync.Mutex
	results map[string]ProfileResult
	holds   map[string]chan struct{}
	started chan string
	calls   []string
}

// NewFakeProfileFetcher creates an empty fetcher; unscripted tokens are not provisioned.
func NewFakeProfileFetcher() *FakeProfileFetcher {
	return &FakeProfileFetcher{
		results: make(map[string]ProfileResult),
		holds:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
}

// SetResult scripts the outcome for token.
func (f *FakeProfileFetcher) SetResult(token string, profile domainauth.Profile, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[token] = ProfileResult{Profile: profile, Err: err}
}

// Hold makes lookups for token block until the returned release func is called.
func (f *FakeProfileFetcher) Hold(token string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[token] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Started receives the token of every lookup as it begins.
func (f *FakeProfileFetcher) Started() <-chan string { return f.started }

// Calls returns the tokens looked up so far.
func (f *FakeProfileFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeProfileFetcher) GetProfile(ctx context.Context, token string) (domainauth.Profile, error) {
	f.mu.Lock()
	f.calls = append(f.calls, token)
	hold := f.holds[token]
	f.mu.Unlock()

	select {
	case f.started <- token:
	default:
	}

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return domainauth.Profile{}, ctx.Err()
		}
	}

	f.mu.Lock()
	res, ok := f.results[token]
	f.mu.Unlock()
	if !ok {
		return domainauth.Profile{}, apperrors.New(apperrors.ErrCodeNotProvisioned, "profile not provisioned")
	}
	return res.Profile, res.Err
}

func (f *FakeProfileFetcher) CreateProfile(ctx context.Context, token string, in domainauth.RegistrationPayload) (domainauth.Profile, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, token, in)
	}
	return domainauth.Profile{
		ID:          "profile-" + token,
		Name:        in.Name,
		PhoneNumber: in.PhoneNumber,
		Category:    in.Category,
		Role:        domainauth.RoleGeneral,
	}, nil
}

// FakeNavigator records navigations and notifies watchers synchronously.
type FakeNavigator struct {
	mu          sync.Mutex
	path        string
	navigations []string
	watchers    map[int]chan string
	nextID      int
}

// NewFakeNavigator creates a navigator positioned at path.
func NewFakeNavigator(path string) *FakeNavigator {
	return &FakeNavigator{path: path, watchers: make(map[int]chan string)}
}

func (n *FakeNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// Navigate moves to path and records the call.
func (n *FakeNavigator) Navigate(path string) {
	n.mu.Lock()
	n.navigations = append(n.navigations, path)
	n.mu.Unlock()
	n.SetPath(path)
}

// SetPath moves to path without recording a navigation, as a user would.
func (n *FakeNavigator) SetPath(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	for _, ch := range n.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- path
	}
}

// Navigations returns the targets passed to Navigate so far.
func (n *FakeNavigator) Navigations() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.navigations...)
}

func (n *FakeNavigator) Watch() (<-chan string, func()) {
	ch := make(chan string, 1)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.watchers[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.watchers, id)
			close(ch)
		})
	}
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.StoredSession
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.StoredSession),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.StoredSession) error {
	if sess.DeviceID == "" {
		return errors.New("device ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.DeviceID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.StoredSession{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// ErrNotFound is returned by mocks when an entity is not present.
var ErrNotFound error = apperrors.New(apperrors.ErrCodeNotFound, "not found")
