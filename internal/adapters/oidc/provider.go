// Package oidc implements the identity provider against an OpenID Connect
// issuer using the resource-owner password grant, with refresh tokens
// persisted through a SessionStore so sessions survive restarts.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/ports"
)

const (
	defaultScope      = "openid email offline_access"
	defaultSessionTTL = 30 * 24 * time.Hour
)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	// AccountsURL is the base URL of the sign-up, verification and reset endpoints.
	AccountsURL string
	HTTPClient  *http.Client // Optional, defaults to a 30s client

	// Store persists refresh tokens. When set, call Restore before relying on
	// the first subscription callback.
	Store      ports.SessionStore
	DeviceID   string
	SessionTTL time.Duration
	Logger     *slog.Logger
}

// DiscoveryDocument represents the subset of the OIDC discovery document we use.
type DiscoveryDocument struct {
	Issuer        string `json:"issuer"`
	TokenEndpoint string `json:"token_endpoint"`
	JwksURI       string `json:"jwks_uri"`
}

// Provider implements ports.IdentityProvider using OIDC/OAuth2.
type Provider struct {
	config      *oauth2.Config
	verifier    *gooidc.IDTokenVerifier
	httpClient  *http.Client
	accountsURL string
	store       ports.SessionStore
	deviceID    string
	sessionTTL  time.Duration
	logger      *slog.Logger
	validate    *validator.Validate
	refreshes   singleflight.Group
	now         func() time.Time

	mu        sync.Mutex
	ready     bool
	current   *Session
	listeners map[int]ports.SessionListener
	nextID    int
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider performs discovery and returns a provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	if config.Store != nil && config.DeviceID == "" {
		return nil, errors.New("device ID is required when a session store is configured")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	scope := config.Scope
	if strings.TrimSpace(scope) == "" {
		scope = defaultScope
	}
	ttl := config.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Single discovery fetch.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       strings.Fields(scope),
			Endpoint:     op.Endpoint(),
		},
		verifier:    op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		httpClient:  httpClient,
		accountsURL: strings.TrimSuffix(config.AccountsURL, "/"),
		store:       config.Store,
		deviceID:    config.DeviceID,
		sessionTTL:  ttl,
		logger:      logger.With("component", "oidc"),
		validate:    validator.New(),
		now:         time.Now,
		ready:       config.Store == nil,
		listeners:   make(map[int]ports.SessionListener),
	}, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Subscribe registers listener. Once the initial state is known (immediately
// without a store, after Restore with one) it is delivered right away.
func (p *Provider) Subscribe(listener ports.SessionListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	ready, current := p.ready, p.current
	p.mu.Unlock()

	if ready {
		listener(sessionOrNil(current))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func sessionOrNil(s *Session) domainauth.Session {
	if s == nil {
		return nil
	}
	return s
}

func (p *Provider) setCurrent(s *Session) {
	p.mu.Lock()
	if p.current != nil && p.current != s {
		p.current.revoke()
	}
	p.current = s
	p.ready = true
	p.mu.Unlock()
	p.notify(s)
}

func (p *Provider) notify(s *Session) {
	p.mu.Lock()
	listeners := make([]ports.SessionListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(sessionOrNil(s))
	}
}

func (p *Provider) currentSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Provider) checkEmail(email string) error {
	if err := p.validate.Var(email, "required,email"); err != nil {
		return apperrors.Newf(apperrors.ErrCodeMalformedEmail, "malformed email address %q", email)
	}
	return nil
}

// SignIn exchanges email and password for tokens with the password grant.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domainauth.Session, error) {
	email = strings.TrimSpace(email)
	if err := p.checkEmail(email); err != nil {
		return nil, err
	}

	tok, err := p.config.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		return nil, mapTokenError(err, apperrors.ErrCodeInvalidCredentials)
	}

	s, err := p.sessionFromToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	p.persist(ctx, s)
	p.logger.Debug("signed in", "user_id", s.userID)
	p.setCurrent(s)
	return s, nil
}

// SignOut drops the current session and its persisted refresh token.
func (p *Provider) SignOut(ctx context.Context) error {
	if p.store != nil {
		if err := p.store.Delete(ctx, p.deviceID); err != nil && !apperrors.IsNotFound(err) {
			p.logger.Warn("failed to delete stored session", "error", err)
		}
	}
	p.setCurrent(nil)
	return nil
}

// Restore resumes the persisted session for this device, if any. Listeners
// receive the outcome, including a nil session when nothing could be restored.
func (p *Provider) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}

	stored, err := p.store.Get(ctx, p.deviceID)
	if err != nil {
		p.setCurrent(nil)
		if apperrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load stored session: %w", err)
	}

	tok, err := p.refresh(ctx, stored.RefreshToken)
	if err != nil {
		p.setCurrent(nil)
		if isRevoked(err) {
			_ = p.store.Delete(ctx, p.deviceID)
			return nil
		}
		return fmt.Errorf("restore session: %w", err)
	}

	s, err := p.sessionFromToken(ctx, tok)
	if err != nil {
		p.setCurrent(nil)
		return fmt.Errorf("restore session: %w", err)
	}
	p.persist(ctx, s)
	p.logger.Debug("restored session", "user_id", s.userID)
	p.setCurrent(s)
	return nil
}

// idClaims are the id_token claims the portal relies on.
type idClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token) (idClaims, error) {
	raw, err := getIDTokenFromToken(tok)
	if err != nil {
		return idClaims{}, err
	}
	idTok, err := p.verifier.Verify(p.clientContext(ctx), raw)
	if err != nil {
		return idClaims{}, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idClaims
	if err := idTok.Claims(&claims); err != nil {
		return idClaims{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	if claims.Subject == "" {
		return idClaims{}, errors.New("id_token has no subject")
	}
	return claims, nil
}

func (p *Provider) sessionFromToken(ctx context.Context, tok *oauth2.Token) (*Session, error) {
	claims, err := p.verifyIDToken(ctx, tok)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenUnavailable, "invalid token response")
	}
	return &Session{
		provider: p,
		userID:   claims.Subject,
		email:    claims.Email,
		verified: claims.EmailVerified,
		tok:      tok,
	}, nil
}

// refresh redeems a refresh token. Concurrent refreshes of the same token share one request.
func (p *Provider) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, apperrors.New(apperrors.ErrCodeTokenUnavailable, "no refresh token")
	}
	v, err, _ := p.refreshes.Do(refreshToken, func() (any, error) {
		src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
		return src.Token()
	})
	if err != nil {
		return nil, mapTokenError(err, apperrors.ErrCodeTokenUnavailable)
	}
	return v.(*oauth2.Token), nil
}

// persist saves the session's refresh token. Failures only cost a re-login
// after restart, so they are logged rather than returned.
func (p *Provider) persist(ctx context.Context, s *Session) {
	if p.store == nil {
		return
	}
	stored := s.stored(p.deviceID, p.now().Add(p.sessionTTL))
	if stored.RefreshToken == "" {
		return
	}
	if err := p.store.Save(ctx, stored); err != nil {
		p.logger.Warn("failed to persist session", "user_id", s.userID, "error", err)
	}
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
