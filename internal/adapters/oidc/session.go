package oidc

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
)

// Session is an OIDC-backed identity session. Its bearer token is the
// id_token, which is what the portal backend verifies.
type Session struct {
	provider *Provider
	userID   string
	email    string

	mu       sync.Mutex
	verified bool
	tok      *oauth2.Token
	revoked  bool
}

var _ domainauth.Session = (*Session)(nil)

func (s *Session) UserID() string { return s.userID }
func (s *Session) Email() string  { return s.email }

func (s *Session) EmailVerified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified
}

// Token returns the cached id_token while it is valid, refreshing it when
// expired or when forceRefresh is set.
func (s *Session) Token(ctx context.Context, forceRefresh bool) (string, error) {
	s.mu.Lock()
	tok, revoked := s.tok, s.revoked
	s.mu.Unlock()

	if revoked {
		return "", apperrors.New(apperrors.ErrCodeTokenUnavailable, "session has been signed out")
	}
	if !forceRefresh && tok.Valid() {
		if bearer, err := getIDTokenFromToken(tok); err == nil {
			return bearer, nil
		}
	}

	fresh, err := s.provider.refresh(ctx, tok.RefreshToken)
	if err != nil {
		return "", err
	}
	claims, err := s.provider.verifyIDToken(ctx, fresh)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTokenUnavailable, "invalid refreshed token")
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}

	s.mu.Lock()
	if s.revoked {
		s.mu.Unlock()
		return "", apperrors.New(apperrors.ErrCodeTokenUnavailable, "session has been signed out")
	}
	s.tok = fresh
	becameVerified := claims.EmailVerified && !s.verified
	s.verified = claims.EmailVerified
	s.mu.Unlock()

	s.provider.persist(ctx, s)
	if becameVerified && s.provider.currentSession() == s {
		// Re-announce so the auth core re-resolves with the verified session.
		s.provider.notify(s)
	}

	bearer, err := getIDTokenFromToken(fresh)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTokenUnavailable, "refresh response has no id_token")
	}
	return bearer, nil
}

func (s *Session) stored(deviceID string, expiresAt time.Time) domainauth.StoredSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domainauth.StoredSession{
		DeviceID:      deviceID,
		UserID:        s.userID,
		Email:         s.email,
		EmailVerified: s.verified,
		ExpiresAt:     expiresAt,
	}
	if s.tok != nil {
		out.RefreshToken = s.tok.RefreshToken
	}
	return out
}

func (s *Session) revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = true
}
