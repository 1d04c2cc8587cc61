// Package backend is the HTTP client for the portal backend's user-profile API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"

	"github.com/festa-portal/portal-client/internal/adapters/authroles"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	apperrors "github.com/festa-portal/portal-client/internal/errors"
	"github.com/festa-portal/portal-client/internal/ports"
)

const (
	DefaultProfilePath   = "/users/me"
	DefaultTimeout       = 10 * time.Second
	DefaultRoleExpr      = "role"
	DefaultErrorCodeExpr = "error.code || code"

	errorFieldExpr   = "error.field || field"
	errorMessageExpr = "error.message || message"
	maxBodyBytes     = 1 << 20
	requestIDHeader  = "X-Request-ID"
)

// unverifiedCodes are backend error codes meaning the email must be verified first.
var unverifiedCodes = map[string]bool{
	"email_unverified":   true,
	"email_not_verified": true,
	"unverified_email":   true,
}

// notProvisionedCodes are backend error codes meaning the caller has no profile yet.
var notProvisionedCodes = map[string]bool{
	"not_provisioned":   true,
	"profile_not_found": true,
	"user_not_found":    true,
}

// ClientOptions configures Client.
type ClientOptions struct {
	BaseURL     string           // Required: backend base URL
	ProfilePath string           // Optional: defaults to /users/me
	Timeout     time.Duration    // Optional: per-request timeout, defaults to 10s
	HTTPClient  *http.Client     // Optional: defaults to a client with a cookie jar
	Roles       ports.RoleMapper // Optional: defaults to authroles.StaticRoleMapper
	// RoleExpr is a JMESPath expression selecting the role string from a profile body.
	RoleExpr string
	// ErrorCodeExpr is a JMESPath expression selecting the error code from an error body.
	ErrorCodeExpr string
	Logger        *slog.Logger
}

// Client implements ports.ProfileFetcher over HTTP.
type Client struct {
	endpoint      string
	timeout       time.Duration
	http          *http.Client
	roles         ports.RoleMapper
	roleExpr      string
	errorCodeExpr string
	logger        *slog.Logger
}

var _ ports.ProfileFetcher = (*Client)(nil)

// NewClient validates opts and returns a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL scheme: %q", base.Scheme)
	}
	if strings.TrimSpace(base.Host) == "" {
		return nil, errors.New("invalid backend URL: missing host")
	}

	path := opts.ProfilePath
	if path == "" {
		path = DefaultProfilePath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	roleExpr := firstNonEmpty(opts.RoleExpr, DefaultRoleExpr)
	codeExpr := firstNonEmpty(opts.ErrorCodeExpr, DefaultErrorCodeExpr)
	for _, expr := range []string{roleExpr, codeExpr} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid JMESPath %q: %w", expr, err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar}
	}

	var roles ports.RoleMapper = authroles.StaticRoleMapper{}
	if opts.Roles != nil {
		roles = opts.Roles
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:      strings.TrimSuffix(base.String(), "/") + path,
		timeout:       timeout,
		http:          httpClient,
		roles:         roles,
		roleExpr:      roleExpr,
		errorCodeExpr: codeExpr,
		logger:        logger.With("component", "backend_client"),
	}, nil
}

// GetProfile fetches the caller's profile.
func (c *Client) GetProfile(ctx context.Context, token string) (domainauth.Profile, error) {
	return c.do(ctx, http.MethodGet, token, nil)
}

// CreateProfile provisions the caller's profile.
func (c *Client) CreateProfile(
	ctx context.Context,
	token string,
	in domainauth.RegistrationPayload,
) (domainauth.Profile, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("encode registration: %w", err)
	}
	return c.do(ctx, http.MethodPost, token, body)
}

func (c *Client) do(ctx context.Context, method, token string, body []byte) (domainauth.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint, reader)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domainauth.Profile{}, apperrors.Classify(fmt.Errorf("%s %s: %w", method, c.endpoint, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return domainauth.Profile{}, apperrors.Classify(fmt.Errorf("read response: %w", err))
	}
	if len(raw) > maxBodyBytes {
		return domainauth.Profile{}, apperrors.Newf(apperrors.ErrCodeUnknown,
			"%s %s: response too large (over %d bytes, status %d)", method, c.endpoint, maxBodyBytes, resp.StatusCode)
	}
	c.logger.DebugContext(ctx, "backend request",
		"method", method,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domainauth.Profile{}, c.statusError(method, resp.StatusCode, raw)
	}
	return c.decodeProfile(raw)
}

// wireProfile is the backend's profile representation. Role is extracted
// separately through the role expression.
type wireProfile struct {
	ID          string              `json:"id"`
	IdentityID  string              `json:"identity_id"`
	Name        domainauth.Name     `json:"name"`
	Email       string              `json:"email"`
	PhoneNumber string              `json:"phone_number"`
	Category    domainauth.Category `json:"category"`
	CreatedAt   time.Time           `json:"created_at"`
}

func (c *Client) decodeProfile(raw []byte) (domainauth.Profile, error) {
	var wire wireProfile
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domainauth.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domainauth.Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	rawRole := searchString(c.roleExpr, doc)
	role := c.roles.Map(rawRole)
	if rawRole != "" && role == domainauth.RoleGuest && !strings.EqualFold(rawRole, string(domainauth.RoleGuest)) {
		c.logger.Warn("unrecognized backend role", "role", rawRole)
	}

	return domainauth.Profile{
		ID:          wire.ID,
		IdentityID:  wire.IdentityID,
		Name:        wire.Name,
		Email:       wire.Email,
		PhoneNumber: wire.PhoneNumber,
		Role:        role,
		Category:    wire.Category,
		CreatedAt:   wire.CreatedAt,
	}, nil
}

func (c *Client) statusError(method string, status int, raw []byte) error {
	var doc any
	_ = json.Unmarshal(raw, &doc)

	code := strings.ToLower(searchString(c.errorCodeExpr, doc))
	message := searchString(errorMessageExpr, doc)
	if message == "" {
		message = fmt.Sprintf("%s %s: %d %s", method, c.endpoint, status, http.StatusText(status))
	}

	switch {
	case unverifiedCodes[code]:
		return apperrors.New(apperrors.ErrCodeEmailUnverified, message)
	case notProvisionedCodes[code], status == http.StatusNotFound && method == http.MethodGet:
		return apperrors.New(apperrors.ErrCodeNotProvisioned, message)
	case status == http.StatusUnauthorized:
		return apperrors.New(apperrors.ErrCodeUnauthorized, message)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.ValidationField(searchString(errorFieldExpr, doc), message)
	case status == http.StatusNotFound:
		return apperrors.NotFound(message)
	default:
		return apperrors.Newf(apperrors.ErrCodeUnknown, "%s (status %d)", message, status)
	}
}

// searchString evaluates expr against doc and returns a string result, or "".
func searchString(expr string, doc any) string {
	if doc == nil {
		return ""
	}
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
