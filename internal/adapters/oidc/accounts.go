package oidc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
)

const (
	signUpPath            = "/signup"
	verificationEmailPath = "/verification-email"
	passwordResetPath     = "/password-reset"
	maxErrorBody          = 64 << 10
)

// providerCodes maps issuer error codes to portal error codes. Keys are
// normalized with normalizeProviderCode.
var providerCodes = map[string]apperrors.ErrorCode{
	"invalid_password":          apperrors.ErrCodeInvalidCredentials,
	"invalid_credentials":       apperrors.ErrCodeInvalidCredentials,
	"invalid_login_credentials": apperrors.ErrCodeInvalidCredentials,
	"email_not_found":           apperrors.ErrCodeUserNotFound,
	"user_not_found":            apperrors.ErrCodeUserNotFound,
	"user_disabled":             apperrors.ErrCodeUserDisabled,
	"account_disabled":          apperrors.ErrCodeUserDisabled,
	"invalid_email":             apperrors.ErrCodeMalformedEmail,
	"malformed_email":           apperrors.ErrCodeMalformedEmail,
	"email_exists":              apperrors.ErrCodeEmailAlreadyInUse,
	"email_already_in_use":      apperrors.ErrCodeEmailAlreadyInUse,
	"weak_password":             apperrors.ErrCodeWeakPassword,
}

// normalizeProviderCode turns "WEAK_PASSWORD : Password should be..." into "weak_password".
func normalizeProviderCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, " :"); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(strings.ReplaceAll(raw, "-", "_"))
}

func lookupProviderCode(candidates ...string) (apperrors.ErrorCode, bool) {
	for _, c := range candidates {
		if code, ok := providerCodes[normalizeProviderCode(c)]; ok {
			return code, true
		}
	}
	return "", false
}

// mapTokenError converts a token endpoint failure. An invalid_grant without a
// more specific description maps to fallback.
func mapTokenError(err error, fallback apperrors.ErrorCode) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return apperrors.Classify(err)
	}
	if code, ok := lookupProviderCode(rerr.ErrorDescription, rerr.ErrorCode); ok {
		return apperrors.Wrap(err, code, providerMessage(rerr.ErrorDescription, rerr.ErrorCode))
	}
	if rerr.ErrorCode == "invalid_grant" {
		return apperrors.Wrap(err, fallback, providerMessage(rerr.ErrorDescription, rerr.ErrorCode))
	}
	if fallback == apperrors.ErrCodeTokenUnavailable {
		return apperrors.Wrap(err, fallback, "token refresh failed")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUnknown, "token request failed")
}

func isRevoked(err error) bool {
	var rerr *oauth2.RetrieveError
	return errors.As(err, &rerr) && rerr.ErrorCode == "invalid_grant"
}

func providerMessage(description, code string) string {
	if description != "" {
		return description
	}
	return code
}

// accountError is the error body of the account endpoints.
type accountError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// SignUp creates an account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (domainauth.Session, error) {
	email = strings.TrimSpace(email)
	if err := p.checkEmail(email); err != nil {
		return nil, err
	}
	body := map[string]string{"email": email, "password": password}
	if err := p.postAccount(ctx, signUpPath, "", body); err != nil {
		return nil, err
	}
	return p.SignIn(ctx, email, password)
}

// SendEmailVerification asks the issuer to mail the current user a verification link.
func (p *Provider) SendEmailVerification(ctx context.Context) error {
	s := p.currentSession()
	if s == nil {
		return apperrors.New(apperrors.ErrCodeNoActiveSession, "no active session")
	}
	token, err := s.Token(ctx, false)
	if err != nil {
		return err
	}
	return p.postAccount(ctx, verificationEmailPath, token, map[string]string{"email": s.email})
}

// SendPasswordResetEmail asks the issuer to mail a password reset link.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := p.checkEmail(email); err != nil {
		return err
	}
	return p.postAccount(ctx, passwordResetPath, "", map[string]string{"email": email})
}

func (p *Provider) postAccount(ctx context.Context, path, bearer string, body any) error {
	if p.accountsURL == "" {
		return apperrors.New(apperrors.ErrCodeUnknown, "account endpoints are not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.accountsURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Classify(fmt.Errorf("POST %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return accountStatusError(resp, path)
}

func accountStatusError(resp *http.Response, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body accountError
	_ = json.Unmarshal(raw, &body)

	if code, ok := lookupProviderCode(body.Error, body.ErrorDescription); ok {
		return apperrors.New(code, providerMessage(body.ErrorDescription, body.Error))
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return apperrors.Newf(apperrors.ErrCodeUnauthorized, "POST %s: %s", path, resp.Status)
	}
	return apperrors.Newf(apperrors.ErrCodeUnknown, "POST %s: %s", path, resp.Status)
}
