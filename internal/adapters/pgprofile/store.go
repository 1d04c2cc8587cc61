// Package pgprofile is a PostgreSQL-backed ProfileFetcher for local stacks
// that run without the portal backend. Callers are authenticated by verifying
// their bearer token.
package pgprofile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/festa-portal/portal-client/internal/adapters/authroles"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/ports"
)

// StoreOptions groups dependencies for Store.
type StoreOptions struct {
	DB          *sql.DB             // Required
	Verifier    ports.TokenVerifier // Required: authenticates bearer tokens
	Roles       ports.RoleMapper    // Optional: defaults to authroles.StaticRoleMapper
	DefaultRole domainauth.Role     // Optional: role of new profiles, defaults to general
	Now         func() time.Time
	Logger      *slog.Logger
}

// Store implements ports.ProfileFetcher on the user_profiles table.
type Store struct {
	db          *sql.DB
	verifier    ports.TokenVerifier
	roles       ports.RoleMapper
	defaultRole domainauth.Role
	now         func() time.Time
	logger      *slog.Logger
}

var _ ports.ProfileFetcher = (*Store)(nil)

// NewStore constructs a Store.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.DB == nil {
		return nil, errors.New("DB is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("TokenVerifier is required")
	}

	var roles ports.RoleMapper = authroles.StaticRoleMapper{}
	if opts.Roles != nil {
		roles = opts.Roles
	}
	role := opts.DefaultRole
	if !role.IsValid() {
		role = domainauth.RoleGeneral
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:          opts.DB,
		verifier:    opts.Verifier,
		roles:       roles,
		defaultRole: role,
		now:         now,
		logger:      logger.With("component", "pgprofile"),
	}, nil
}

// MustNewStore is like NewStore but panics on error.
func MustNewStore(opts StoreOptions) *Store {
	s, err := NewStore(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during bootstrap.
		panic(err)
	}
	return s
}

const profileColumns = `id, identity_id, email, first_name, last_name, first_name_kana, last_name_kana,
	phone_number, role, category, created_at`

// authenticate verifies token and requires a verified email.
func (s *Store) authenticate(ctx context.Context, token string) (domainauth.TokenClaims, error) {
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return domainauth.TokenClaims{}, err
	}
	if !claims.EmailVerified {
		return domainauth.TokenClaims{}, apperrors.New(apperrors.ErrCodeEmailUnverified, "email address is not verified")
	}
	return claims, nil
}

// GetProfile returns the profile of the token's subject.
func (s *Store) GetProfile(ctx context.Context, token string) (domainauth.Profile, error) {
	claims, err := s.authenticate(ctx, token)
	if err != nil {
		return domainauth.Profile{}, err
	}

	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE identity_id = $1`
	p, err := s.scanProfile(s.db.QueryRowContext(ctx, query, claims.Subject))
	if errors.Is(err, sql.ErrNoRows) {
		return domainauth.Profile{}, apperrors.Newf(apperrors.ErrCodeNotProvisioned, "no profile for user %s", claims.Subject)
	}
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("get profile: %w", apperrors.MapDBError(err))
	}
	return p, nil
}

// CreateProfile inserts a profile for the token's subject.
func (s *Store) CreateProfile(
	ctx context.Context,
	token string,
	in domainauth.RegistrationPayload,
) (domainauth.Profile, error) {
	claims, err := s.authenticate(ctx, token)
	if err != nil {
		return domainauth.Profile{}, err
	}

	query := `
		INSERT INTO user_profiles (
			id, identity_id, email, first_name, last_name, first_name_kana, last_name_kana,
			phone_number, role, category, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + profileColumns

	row := s.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		claims.Subject,
		strings.ToLower(claims.Email),
		in.Name.First,
		in.Name.Last,
		in.Name.FirstKana,
		in.Name.LastKana,
		in.PhoneNumber,
		string(s.defaultRole),
		string(in.Category),
		s.now().UTC(),
	)
	p, err := s.scanProfile(row)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("create profile: %w", apperrors.MapDBError(err))
	}
	s.logger.InfoContext(ctx, "profile created", "user_id", claims.Subject, "profile_id", p.ID)
	return p, nil
}

func (s *Store) scanProfile(row *sql.Row) (domainauth.Profile, error) {
	var (
		p        domainauth.Profile
		role     string
		category string
	)
	err := row.Scan(
		&p.ID,
		&p.IdentityID,
		&p.Email,
		&p.Name.First,
		&p.Name.Last,
		&p.Name.FirstKana,
		&p.Name.LastKana,
		&p.PhoneNumber,
		&role,
		&category,
		&p.CreatedAt,
	)
	if err != nil {
		return domainauth.Profile{}, err
	}
	p.Role = s.roles.Map(role)
	p.Category = domainauth.Category(category)
	return p, nil
}

// SetRole changes the role of an existing profile. It backs the operator
// tooling of local stacks; the portal itself never changes roles.
func (s *Store) SetRole(ctx context.Context, identityID string, role domainauth.Role) error {
	return SetRole(ctx, s.db, identityID, role)
}

// SetRole updates the role of the profile owned by identityID.
func SetRole(ctx context.Context, db *sql.DB, identityID string, role domainauth.Role) error {
	if !role.IsValid() {
		return apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", role))
	}
	res, err := db.ExecContext(ctx, `UPDATE user_profiles SET role = $1 WHERE identity_id = $2`, string(role), identityID)
	if err != nil {
		return fmt.Errorf("set role: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("profile not found")
	}
	return nil
}
