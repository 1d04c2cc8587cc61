package auth

// Package auth contains domain-level types for authentication and the client-side auth snapshot.
// It is pure and free of framework/adapter concerns.

import (
	"context"
	"time"
)

// Session is the identity-provider handle for an authenticated principal.
// It is owned by the identity provider; the auth core only references it.
type Session interface {
	// UserID is the stable identity-provider user id.
	UserID() string
	Email() string
	EmailVerified() bool
	// Token returns a bearer token, refreshing it first when forceRefresh is set.
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// Category is the affiliation a person declares when registering.
type Category string

const (
	CategoryUndergraduate Category = "undergraduate_student"
	CategoryGraduate      Category = "graduate_student"
	CategoryAcademicStaff Category = "academic_staff"
	CategoryOther         Category = "other"
)

// IsValid reports whether c is one of the declared categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryUndergraduate, CategoryGraduate, CategoryAcademicStaff, CategoryOther:
		return true
	default:
		return false
	}
}

// Name is a person's name in display and phonetic (kana) form.
type Name struct {
	First     string `json:"first"`
	Last      string `json:"last"`
	FirstKana string `json:"first_kana"`
	LastKana  string `json:"last_kana"`
}

// Profile is the application-level user record returned by the backend once a
// person has completed in-app registration.
type Profile struct {
	ID          string    `json:"id"`
	IdentityID  string    `json:"identity_id"`
	Name        Name      `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Role        Role      `json:"role"`
	Category    Category  `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// RegistrationPayload carries the fields a person submits to create their profile.
// Email and identity come from the session.
type RegistrationPayload struct {
	Name        Name     `json:"name"`
	PhoneNumber string   `json:"phone_number"`
	Category    Category `json:"category"`
}

// StoredSession is the persisted form of an identity-provider session, used to
// restore the session when the client restarts.
type StoredSession struct {
	DeviceID      string    `json:"device_id"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	RefreshToken  string    `json:"refresh_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// TokenClaims are the identity facts carried by a verified bearer token.
type TokenClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	ExpiresAt     time.Time
}
