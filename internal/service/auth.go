package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/observability/metrics"
	"github.com/festa-portal/portal-client/internal/observability/statsd"
	"github.com/festa-portal/portal-client/internal/ports"
)

// DefaultRequestTimeout bounds a single backend profile call.
const DefaultRequestTimeout = 10 * time.Second

// eventBuffer is the capacity of the notification queue between provider
// callbacks and the machine's loop.
const eventBuffer = 32

var errMachineClosed = errors.New("auth machine closed")

// AuthMachineOptions groups dependencies for AuthMachine.
type AuthMachineOptions struct {
	Identity       ports.IdentityProvider // Required: identity-provider SDK surface
	Profiles       ports.ProfileFetcher   // Required: backend profile endpoints
	Logger         *slog.Logger           // Optional: structured logger
	Metrics        statsd.Sink            // Optional: metrics sink (StatsD-compatible)
	RequestTimeout time.Duration          // Optional: per backend call, defaults to DefaultRequestTimeout
	Strict         bool                   // Optional: panic on contract violations (development)
}

// notification is one identity-provider session change, stamped on receipt.
type notification struct {
	seq     uint64
	session domainauth.Session
}

// AuthMachine owns the process-wide auth snapshot.
//
// RESPONSIBILITIES:
//   - Subscribe once to identity-provider session changes
//   - Resolve every change into a snapshot variant via the backend profile endpoint
//   - Publish snapshots to watchers
//   - Delegate the imperative account operations to the identity provider
//
// ORDERING:
//   - Each notification gets a sequence number when it is received. A resolution
//     commits only if its number is still the latest issued, so the last
//     notification received always determines the final snapshot regardless of
//     which backend call finishes first.
type AuthMachine struct {
	identity ports.IdentityProvider
	profiles ports.ProfileFetcher
	logger   *slog.Logger
	metrics  statsd.Sink
	timeout  time.Duration
	strict   bool

	events chan notification
	wg     sync.WaitGroup

	mu          sync.Mutex
	snapshot    domainauth.Snapshot
	seq         uint64
	received    bool
	latest      domainauth.Session
	watchers    map[int]chan domainauth.Snapshot
	nextWatcher int
	started     bool
	closed      bool
	done        <-chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
}

// NewAuthMachine constructs an AuthMachine in the unchecked state.
//
// Returns an error if Identity or Profiles is nil.
func NewAuthMachine(opts AuthMachineOptions) (*AuthMachine, error) {
	if opts.Identity == nil {
		return nil, errors.New("IdentityProvider is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("ProfileFetcher is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &AuthMachine{
		identity: opts.Identity,
		profiles: opts.Profiles,
		logger:   logger.With("component", "auth_machine"),
		metrics:  opts.Metrics,
		timeout:  timeout,
		strict:   opts.Strict,
		events:   make(chan notification, eventBuffer),
		snapshot: domainauth.Unchecked(),
		watchers: make(map[int]chan domainauth.Snapshot),
	}, nil
}

// MustNewAuthMachine constructs a new AuthMachine and panics on error.
func MustNewAuthMachine(opts AuthMachineOptions) *AuthMachine {
	m, err := NewAuthMachine(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return m
}

// Init starts the machine and subscribes to the identity provider. The
// subscription lives until ctx ends or Close is called. Calling Init again is a no-op.
func (m *AuthMachine) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errMachineClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	m.done = loopCtx.Done()
	m.cancel = cancel
	m.mu.Unlock()

	// The loop must run before subscribing: providers deliver the current
	// session from inside Subscribe.
	m.wg.Add(1)
	go m.run(loopCtx)

	unsubscribe := m.identity.Subscribe(m.onSession)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		unsubscribe()
		return nil
	}
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "auth machine subscribed")
	return nil
}

// Close unsubscribes from the identity provider, stops in-flight resolutions
// and closes every watch channel. It is safe to call more than once.
func (m *AuthMachine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubscribe, cancel := m.unsubscribe, m.cancel
	for id, ch := range m.watchers {
		close(ch)
		delete(m.watchers, id)
	}
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Snapshot returns the current snapshot.
func (m *AuthMachine) Snapshot() domainauth.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Watch returns a channel holding the latest snapshot. The channel is primed
// with the current snapshot; a slow reader only ever sees the newest value.
// The returned func stops the watch and closes the channel.
func (m *AuthMachine) Watch() (<-chan domainauth.Snapshot, func()) {
	ch := make(chan domainauth.Snapshot, 1)

	m.mu.Lock()
	ch <- m.snapshot
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.watchers[id]; ok {
				delete(m.watchers, id)
				close(c)
			}
		})
	}
}

// onSession is the identity-provider listener. It only stamps and enqueues.
func (m *AuthMachine) onSession(session domainauth.Session) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.seq++
	n := notification{seq: m.seq, session: session}
	m.received = true
	m.latest = session
	done := m.done
	m.mu.Unlock()

	select {
	case m.events <- n:
	case <-done:
	}
}

func (m *AuthMachine) run(ctx context.Context) {
	defer m.wg.Done()

	var (
		lastSeq        uint64
		cancelInFlight context.CancelFunc
	)
	defer func() {
		if cancelInFlight != nil {
			cancelInFlight()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-m.events:
			// Concurrent callbacks can enqueue out of stamp order.
			if n.seq <= lastSeq {
				m.discard(n.seq, "reordered")
				continue
			}
			lastSeq = n.seq

			// A newer notification makes the previous resolution moot; its
			// result would be discarded at commit anyway.
			if cancelInFlight != nil {
				cancelInFlight()
				cancelInFlight = nil
			}

			if n.session == nil {
				m.commit(n.seq, domainauth.SignedOut())
				continue
			}

			fetchCtx, cancel := context.WithCancel(ctx)
			cancelInFlight = cancel
			m.wg.Add(1)
			go func(n notification) {
				defer m.wg.Done()
				defer cancel()
				m.commit(n.seq, m.resolve(fetchCtx, n.session))
			}(n)
		}
	}
}

// resolve turns a non-nil session into a snapshot. It never panics and never
// returns an error: every failure folds into the error variant.
func (m *AuthMachine) resolve(ctx context.Context, session domainauth.Session) (snap domainauth.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "panic while resolving session", "user_id", session.UserID(), "panic", r)
			snap = domainauth.Failed(apperrors.Newf(apperrors.ErrCodeUnknown, "resolve session: panic: %v", r))
		}
	}()

	token, err := sessionToken(ctx, session, false)
	if err != nil {
		return domainauth.Failed(err)
	}

	profile, err := m.fetchProfile(ctx, token, 1)
	if apperrors.IsUnauthorized(err) {
		m.logger.DebugContext(ctx, "backend rejected token, refreshing", "user_id", session.UserID())
		if token, err = sessionToken(ctx, session, true); err != nil {
			return domainauth.Failed(err)
		}
		profile, err = m.fetchProfile(ctx, token, 2)
	}

	switch {
	case err == nil:
		if !profile.Role.IsValid() {
			m.logger.WarnContext(ctx, "profile has unknown role, access is evaluated as guest",
				"user_id", session.UserID(), "role", string(profile.Role))
		}
		return domainauth.BothSignedIn(profile, session)
	case apperrors.IsNotProvisioned(err), apperrors.IsEmailUnverified(err):
		return domainauth.SessionOnly(session)
	default:
		return domainauth.Failed(apperrors.Classify(err))
	}
}

func (m *AuthMachine) fetchProfile(ctx context.Context, token string, attempt int) (domainauth.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	profile, err := m.profiles.GetProfile(ctx, token)
	if err != nil {
		err = apperrors.Classify(err)
	}
	metrics.EmitProfileFetch(m.metrics, metrics.ProfileFetchMetric{
		Attempt:  attempt,
		Duration: time.Since(start),
		Err:      err,
	})
	return profile, err
}

func sessionToken(ctx context.Context, session domainauth.Session, forceRefresh bool) (string, error) {
	token, err := session.Token(ctx, forceRefresh)
	if err == nil && token == "" {
		err = errors.New("empty token")
	}
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeTokenUnavailable {
			return "", err
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodeTokenUnavailable, "get session token")
	}
	return token, nil
}

// commit installs next if seq is still the latest issued sequence number.
func (m *AuthMachine) commit(seq uint64, next domainauth.Snapshot) bool {
	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		m.discard(seq, next.Kind().String())
		return false
	}
	prev := m.snapshot
	m.snapshot = next
	m.publishLocked(next)
	m.mu.Unlock()

	m.logger.Debug("auth snapshot committed", "seq", seq, "from", prev.Kind().String(), "snapshot", next.String())
	metrics.EmitAuthTransition(m.metrics, prev.Kind().String(), next.Kind().String())
	if err := next.Err(); err != nil {
		m.logger.Warn("auth snapshot resolution failed",
			"seq", seq,
			"code", string(apperrors.GetCode(err)),
			"error", err)
		metrics.EmitFoldError(m.metrics, err)
	}
	return true
}

func (m *AuthMachine) discard(seq uint64, outcome string) {
	m.logger.Debug("discarding stale auth result", "seq", seq, "outcome", outcome)
	metrics.EmitStaleDiscarded(m.metrics, outcome)
}

func (m *AuthMachine) publishLocked(snap domainauth.Snapshot) {
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// SignIn signs in with email and password. The snapshot follows through the
// provider's change notification, not through this call.
func (m *AuthMachine) SignIn(ctx context.Context, email, password string) (domainauth.Session, error) {
	session, err := m.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", apperrors.Classify(err))
	}
	return session, nil
}

// SignUp creates an identity-provider account.
func (m *AuthMachine) SignUp(ctx context.Context, email, password string) (domainauth.Session, error) {
	session, err := m.identity.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", apperrors.Classify(err))
	}
	return session, nil
}

// SignOut terminates the identity-provider session.
func (m *AuthMachine) SignOut(ctx context.Context) error {
	if err := m.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", apperrors.Classify(err))
	}
	return nil
}

// SendEmailVerification asks the identity provider to mail a verification link
// to the signed-in user.
func (m *AuthMachine) SendEmailVerification(ctx context.Context) error {
	m.mu.Lock()
	signedOut := m.received && m.latest == nil
	m.mu.Unlock()
	if signedOut {
		return apperrors.New(apperrors.ErrCodeNoActiveSession, "send email verification: no active session")
	}

	if err := m.identity.SendEmailVerification(ctx); err != nil {
		return fmt.Errorf("send email verification: %w", apperrors.Classify(err))
	}
	return nil
}

// SendPasswordResetEmail asks the identity provider to mail a password reset link.
func (m *AuthMachine) SendPasswordResetEmail(ctx context.Context, email string) error {
	if err := m.identity.SendPasswordResetEmail(ctx, email); err != nil {
		return fmt.Errorf("send password reset email: %w", apperrors.Classify(err))
	}
	return nil
}

// InitProfile provisions the backend profile for a session-only user and moves
// the snapshot to bothSignedIn. It is the only write that does not come from a
// provider notification.
//
// Calling it in any other state is a contract violation: it fails with
// not_in_session_only_state (and panics in strict mode) without touching the
// snapshot.
func (m *AuthMachine) InitProfile(ctx context.Context, in domainauth.RegistrationPayload) (domainauth.Profile, error) {
	m.mu.Lock()
	snap := m.snapshot
	m.mu.Unlock()

	if snap.Kind() != domainauth.SnapshotSessionOnly {
		err := apperrors.NotInSessionOnlyState(snap.Kind().String())
		m.logger.ErrorContext(ctx, "init profile called outside session-only state", "snapshot", snap.String())
		metrics.EmitInitProfile(m.metrics, err)
		if m.strict {
			panic(err) //nolint:forbidigo // contract violations are loud in development
		}
		return domainauth.Profile{}, err
	}

	profile, err := m.createProfile(ctx, snap, in)
	metrics.EmitInitProfile(m.metrics, err)
	if err != nil {
		return domainauth.Profile{}, err
	}
	return profile, nil
}

func (m *AuthMachine) createProfile(ctx context.Context, snap domainauth.Snapshot, in domainauth.RegistrationPayload) (domainauth.Profile, error) {
	if err := ValidateRegistration(in); err != nil {
		return domainauth.Profile{}, err
	}

	session, _ := snap.Session()
	token, err := sessionToken(ctx, session, false)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("init profile: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	profile, err := m.profiles.CreateProfile(callCtx, token, in)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("init profile: %w", apperrors.Classify(err))
	}

	m.mu.Lock()
	current, latest := m.snapshot, m.latest
	if current.Kind() != domainauth.SnapshotSessionOnly ||
		current.UserID() != session.UserID() ||
		latest == nil || latest.UserID() != session.UserID() {
		m.mu.Unlock()
		// The session changed while the profile was being created. The next
		// notification for this user resolves the new profile.
		m.logger.WarnContext(ctx, "session changed during profile creation, snapshot left as is",
			"user_id", session.UserID(), "snapshot", current.String())
		return domainauth.Profile{}, apperrors.NotInSessionOnlyState(current.Kind().String())
	}
	// Advance the sequence so fetches still in flight for older notifications
	// cannot overwrite this write.
	m.seq++
	seq := m.seq
	next := domainauth.BothSignedIn(profile, latest)
	m.snapshot = next
	m.publishLocked(next)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "profile provisioned", "seq", seq, "user_id", session.UserID(), "role", string(profile.Role))
	metrics.EmitAuthTransition(m.metrics, current.Kind().String(), next.Kind().String())
	return profile, nil
}
