package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
)

// SessionListener receives identity-provider session changes. A nil session
// means no one is signed in.
type SessionListener func(session domainauth.Session)

// IdentityProvider is the identity-provider SDK surface the auth core consumes.
// Implementations deliver the current session to a new listener and then every change.
type IdentityProvider interface {
	Subscribe(listener SessionListener) (unsubscribe func())

	SignIn(ctx context.Context, email, password string) (domainauth.Session, error)
	SignUp(ctx context.Context, email, password string) (domainauth.Session, error)
	SignOut(ctx context.Context) error
	SendEmailVerification(ctx context.Context) error
	SendPasswordResetEmail(ctx context.Context, email string) error
}

// ProfileFetcher talks to the backend user-profile endpoints.
type ProfileFetcher interface {
	// GetProfile returns the caller's profile. A missing profile is reported as a
	// not_provisioned (or email_unverified) AppError rather than a transport failure.
	GetProfile(ctx context.Context, token string) (domainauth.Profile, error)

	// CreateProfile provisions the caller's profile.
	CreateProfile(ctx context.Context, token string, in domainauth.RegistrationPayload) (domainauth.Profile, error)
}

// TokenVerifier validates a bearer token and returns its identity claims.
// Invalid or expired tokens yield an unauthorized AppError.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domainauth.TokenClaims, error)
}

// RoleMapper maps a backend role string to a portal role.
type RoleMapper interface {
	Map(raw string) domainauth.Role
}

// Navigator is the routing primitive of the application shell.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
	// Watch returns a channel that receives the path after every route change.
	Watch() (<-chan string, func())
}

// SessionStore persists identity-provider sessions across client restarts.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.StoredSession) error
	Get(ctx context.Context, deviceID string) (domainauth.StoredSession, error)
	Delete(ctx context.Context, deviceID string) error
}
