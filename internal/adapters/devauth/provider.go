// Package devauth provides an in-memory identity provider for local development
// and tests. Accounts live in memory with bcrypt password hashes, bearer tokens
// are HS256 JWTs, and outgoing mail is captured in an outbox instead of sent.
package devauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/ports"
)

const (
	defaultTokenTTL      = time.Hour
	defaultMinPassword   = 6
	defaultBcryptCost    = bcrypt.DefaultCost
	verificationCodeSize = 8
)

// Account is a seeded dev account.
type Account struct {
	Email    string
	Password string
	Verified bool
	Disabled bool
}

// Config controls the dev identity provider.
type Config struct {
	// TokenSecret signs bearer tokens. Required.
	TokenSecret []byte
	Issuer      string
	// TokenTTL defaults to 1h.
	TokenTTL time.Duration
	Accounts []Account
	// MinPasswordLength defaults to 6.
	MinPasswordLength int
	// BcryptCost defaults to bcrypt.DefaultCost; tests use bcrypt.MinCost.
	BcryptCost int
	Logger     *slog.Logger
	Now        func() time.Time
}

type account struct {
	id       string
	email    string
	hash     []byte
	verified bool
	disabled bool
}

// Provider implements ports.IdentityProvider in memory.
// Change notifications are delivered synchronously on the caller's goroutine,
// after the provider's lock is released.
type Provider struct {
	minter      minter
	minPassword int
	cost        int
	logger      *slog.Logger
	validate    *validator.Validate

	mu        sync.Mutex
	accounts  map[string]*account // by normalized email
	current   *Session
	listeners map[int]ports.SessionListener
	nextID    int
	outbox    []Mail
	codes     map[string]pendingCode
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs a dev provider and seeds cfg.Accounts.
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.TokenSecret) == 0 {
		return nil, errors.New("dev auth: TokenSecret is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	minPassword := cfg.MinPasswordLength
	if minPassword <= 0 {
		minPassword = defaultMinPassword
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = defaultBcryptCost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		minter:      minter{secret: append([]byte(nil), cfg.TokenSecret...), issuer: issuer, ttl: ttl, now: now},
		minPassword: minPassword,
		cost:        cost,
		logger:      logger.With("component", "devauth"),
		validate:    validator.New(),
		accounts:    make(map[string]*account),
		listeners:   make(map[int]ports.SessionListener),
		codes:       make(map[string]pendingCode),
	}

	for _, a := range cfg.Accounts {
		acct, err := p.newAccount(a.Email, a.Password)
		if err != nil {
			return nil, fmt.Errorf("dev auth: seed %s: %w", a.Email, err)
		}
		acct.verified = a.Verified
		acct.disabled = a.Disabled
		p.accounts[acct.email] = acct
	}
	return p, nil
}

// Verifier returns a token verifier sharing this provider's secret and issuer.
func (p *Provider) Verifier() *Verifier {
	return &Verifier{secret: p.minter.secret, issuer: p.minter.issuer, now: p.minter.now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) checkEmail(email string) error {
	if err := p.validate.Var(email, "required,email"); err != nil {
		return apperrors.Newf(apperrors.ErrCodeMalformedEmail, "malformed email address %q", email)
	}
	return nil
}

func (p *Provider) newAccount(email, password string) (*account, error) {
	email = normalizeEmail(email)
	if err := p.checkEmail(email); err != nil {
		return nil, err
	}
	if len(password) < p.minPassword {
		return nil, apperrors.Newf(apperrors.ErrCodeWeakPassword, "password must be at least %d characters", p.minPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &account{id: uuid.NewString(), email: email, hash: hash}, nil
}

// Subscribe registers listener and immediately delivers the current session.
func (p *Provider) Subscribe(listener ports.SessionListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	current := p.current
	p.mu.Unlock()

	listener(sessionOrNil(current))

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// sessionOrNil keeps a nil *Session from becoming a non-nil interface.
func sessionOrNil(s *Session) domainauth.Session {
	if s == nil {
		return nil
	}
	return s
}

// setCurrent installs s (nil to sign out) and notifies listeners.
func (p *Provider) setCurrent(s *Session) {
	p.mu.Lock()
	if p.current != nil {
		p.current.revoke()
	}
	p.current = s
	listeners := make([]ports.SessionListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(sessionOrNil(s))
	}
}

// SignIn authenticates email and password and makes the result the current session.
func (p *Provider) SignIn(_ context.Context, email, password string) (domainauth.Session, error) {
	email = normalizeEmail(email)
	if err := p.checkEmail(email); err != nil {
		return nil, err
	}

	p.mu.Lock()
	acct, ok := p.accounts[email]
	var snapshot account
	if ok {
		snapshot = *acct
	}
	p.mu.Unlock()

	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeUserNotFound, "no account for %s", email)
	}
	if snapshot.disabled {
		return nil, apperrors.Newf(apperrors.ErrCodeUserDisabled, "account %s is disabled", email)
	}
	if err := bcrypt.CompareHashAndPassword(snapshot.hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperrors.New(apperrors.ErrCodeInvalidCredentials, "wrong email or password")
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}

	s := p.newSession(&snapshot)
	p.logger.Debug("signed in", "user_id", s.userID)
	p.setCurrent(s)
	return s, nil
}

// SignUp creates an unverified account and signs it in.
func (p *Provider) SignUp(_ context.Context, email, password string) (domainauth.Session, error) {
	acct, err := p.newAccount(email, password)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if _, exists := p.accounts[acct.email]; exists {
		p.mu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrCodeEmailAlreadyInUse, "%s is already registered", acct.email)
	}
	p.accounts[acct.email] = acct
	snapshot := *acct
	p.mu.Unlock()

	s := p.newSession(&snapshot)
	p.logger.Debug("signed up", "user_id", s.userID)
	p.setCurrent(s)
	return s, nil
}

// SignOut ends the current session. Signing out while signed out still notifies.
func (p *Provider) SignOut(_ context.Context) error {
	p.setCurrent(nil)
	return nil
}

// SendEmailVerification captures a verification mail for the current user.
func (p *Provider) SendEmailVerification(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return apperrors.New(apperrors.ErrCodeNoActiveSession, "no active session")
	}
	p.queueMailLocked(MailVerifyEmail, p.current.email)
	return nil
}

// SendPasswordResetEmail captures a password reset mail for email.
func (p *Provider) SendPasswordResetEmail(_ context.Context, email string) error {
	email = normalizeEmail(email)
	if err := p.checkEmail(email); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[email]; !ok {
		return apperrors.Newf(apperrors.ErrCodeUserNotFound, "no account for %s", email)
	}
	p.queueMailLocked(MailResetPassword, email)
	return nil
}

// ApplyVerificationCode marks the mailed account as verified. When that account
// is signed in, listeners are re-notified with a session whose tokens carry
// the new verification state.
func (p *Provider) ApplyVerificationCode(_ context.Context, code string) error {
	p.mu.Lock()
	pending, ok := p.takeCodeLocked(code, MailVerifyEmail)
	if !ok {
		p.mu.Unlock()
		return apperrors.ValidationField("code", "invalid or expired verification code")
	}
	acct, ok := p.accounts[pending.email]
	if !ok {
		p.mu.Unlock()
		return apperrors.Newf(apperrors.ErrCodeUserNotFound, "no account for %s", pending.email)
	}
	acct.verified = true
	snapshot := *acct
	reissue := p.current != nil && p.current.userID == acct.id
	p.mu.Unlock()

	if reissue {
		p.setCurrent(p.newSession(&snapshot))
	}
	return nil
}

// ResetPassword sets a new password using a mailed reset code.
func (p *Provider) ResetPassword(_ context.Context, code, newPassword string) error {
	if len(newPassword) < p.minPassword {
		return apperrors.Newf(apperrors.ErrCodeWeakPassword, "password must be at least %d characters", p.minPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pending, ok := p.takeCodeLocked(code, MailResetPassword)
	if !ok {
		return apperrors.ValidationField("code", "invalid or expired reset code")
	}
	acct, ok := p.accounts[pending.email]
	if !ok {
		return apperrors.Newf(apperrors.ErrCodeUserNotFound, "no account for %s", pending.email)
	}
	acct.hash = hash
	return nil
}

// Session is a dev identity-provider session.
type Session struct {
	minter   minter
	userID   string
	email    string
	verified bool

	mu      sync.Mutex
	token   string
	expires time.Time
	revoked bool
}

var _ domainauth.Session = (*Session)(nil)

func (p *Provider) newSession(a *account) *Session {
	return &Session{minter: p.minter, userID: a.id, email: a.email, verified: a.verified}
}

func (s *Session) UserID() string      { return s.userID }
func (s *Session) Email() string       { return s.email }
func (s *Session) EmailVerified() bool { return s.verified }

// Token returns a cached bearer token, minting a new one when forced, missing
// or within a minute of expiry. Signed-out sessions have no token.
func (s *Session) Token(_ context.Context, forceRefresh bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revoked {
		return "", apperrors.New(apperrors.ErrCodeTokenUnavailable, "session has been signed out")
	}
	if !forceRefresh && s.token != "" && s.minter.now().Add(time.Minute).Before(s.expires) {
		return s.token, nil
	}

	token, expires, err := s.minter.mint(s.userID, s.email, s.verified)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTokenUnavailable, "mint token")
	}
	s.token, s.expires = token, expires
	return token, nil
}

func (s *Session) revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = true
	s.token = ""
}
