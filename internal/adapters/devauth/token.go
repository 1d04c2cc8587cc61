package devauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/ports"
)

// DefaultIssuer is the iss claim of tokens minted by the dev provider.
const DefaultIssuer = "portal-devauth"

// Claims is the JWT payload of a dev bearer token.
type Claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// minter signs HS256 bearer tokens.
type minter struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func (m minter) mint(userID, email string, verified bool) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)
	claims := Claims{
		Email:         email,
		EmailVerified: verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verifier checks dev bearer tokens. It is the backend half of the dev
// provider: local profile stores use it to authenticate callers.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ ports.TokenVerifier = (*Verifier)(nil)

// NewVerifier creates a verifier for tokens signed with secret by issuer.
func NewVerifier(secret []byte, issuer string) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("dev auth: token secret is required")
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Verifier{secret: append([]byte(nil), secret...), issuer: issuer, now: time.Now}, nil
}

// Verify parses and validates token. Any failure is reported as unauthorized.
func (v *Verifier) Verify(_ context.Context, token string) (domainauth.TokenClaims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return domainauth.TokenClaims{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid bearer token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return domainauth.TokenClaims{}, apperrors.New(apperrors.ErrCodeUnauthorized, "invalid bearer token")
	}

	out := domainauth.TokenClaims{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
