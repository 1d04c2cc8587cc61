package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "portal-client"
	testKeyID    = "test-key"
)

var (
	signingKeyOnce sync.Once
	signingKey     *rsa.PrivateKey
)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	signingKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		signingKey = key
	})
	return signingKey
}

type issuerUser struct {
	sub      string
	password string
	verified bool
}

// fakeIssuer is a minimal OpenID provider with password and refresh grants
// plus the account endpoints.
type fakeIssuer struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	mu            sync.Mutex
	users         map[string]*issuerUser
	refreshTokens map[string]string // token -> email
	issued        int
	refreshGrants int
	mails         []string
	bearers       []string
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	fi := &fakeIssuer{
		t:             t,
		key:           testSigningKey(t),
		users:         make(map[string]*issuerUser),
		refreshTokens: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", fi.discovery)
	mux.HandleFunc("/jwks", fi.jwks)
	mux.HandleFunc("/token", fi.token)
	mux.HandleFunc("/accounts/signup", fi.signUp)
	mux.HandleFunc("/accounts/verification-email", fi.verificationEmail)
	mux.HandleFunc("/accounts/password-reset", fi.passwordReset)
	fi.server = httptest.NewServer(mux)
	t.Cleanup(fi.server.Close)
	return fi
}

func (fi *fakeIssuer) URL() string { return fi.server.URL }

func (fi *fakeIssuer) addUser(email, password string, verified bool) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.users[email] = &issuerUser{sub: "sub-" + strings.Split(email, "@")[0], password: password, verified: verified}
}

func (fi *fakeIssuer) verify(email string) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.users[email].verified = true
}

func (fi *fakeIssuer) revokeAll() {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.refreshTokens = make(map[string]string)
}

func (fi *fakeIssuer) refreshCount() int {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.refreshGrants
}

func (fi *fakeIssuer) sentMails() []string {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return append([]string(nil), fi.mails...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func oauthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": description})
}

func (fi *fakeIssuer) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                fi.URL(),
		"authorization_endpoint":                fi.URL() + "/auth",
		"token_endpoint":                        fi.URL() + "/token",
		"jwks_uri":                              fi.URL() + "/jwks",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (fi *fakeIssuer) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := fi.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKeyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

// issueLocked writes a token response for email. Callers hold fi.mu.
func (fi *fakeIssuer) issueLocked(w http.ResponseWriter, email string) {
	u := fi.users[email]
	fi.issued++
	now := time.Now()
	idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":            fi.URL(),
		"aud":            testClientID,
		"sub":            u.sub,
		"email":          email,
		"email_verified": u.verified,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"n":              fi.issued,
	})
	idToken.Header["kid"] = testKeyID
	signed, err := idToken.SignedString(fi.key)
	require.NoError(fi.t, err)

	refresh := fmt.Sprintf("rt-%s-%d", u.sub, fi.issued)
	fi.refreshTokens[refresh] = email
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  fmt.Sprintf("at-%d", fi.issued),
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": refresh,
		"id_token":      signed,
	})
}

func (fi *fakeIssuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}
	fi.mu.Lock()
	defer fi.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "password":
		email := r.PostForm.Get("username")
		u, ok := fi.users[email]
		switch {
		case !ok:
			oauthError(w, http.StatusBadRequest, "invalid_grant", "EMAIL_NOT_FOUND")
		case u.password == "disabled":
			oauthError(w, http.StatusBadRequest, "invalid_grant", "USER_DISABLED")
		case u.password != r.PostForm.Get("password"):
			oauthError(w, http.StatusBadRequest, "invalid_grant", "INVALID_PASSWORD")
		default:
			fi.issueLocked(w, email)
		}
	case "refresh_token":
		fi.refreshGrants++
		email, ok := fi.refreshTokens[r.PostForm.Get("refresh_token")]
		if !ok {
			oauthError(w, http.StatusBadRequest, "invalid_grant", "")
			return
		}
		fi.issueLocked(w, email)
	default:
		oauthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func decodeAccountBody(r *http.Request) map[string]string {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

func (fi *fakeIssuer) signUp(w http.ResponseWriter, r *http.Request) {
	body := decodeAccountBody(r)
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if _, exists := fi.users[body["email"]]; exists {
		oauthError(w, http.StatusBadRequest, "EMAIL_EXISTS", "")
		return
	}
	if len(body["password"]) < 6 {
		oauthError(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters", "")
		return
	}
	fi.users[body["email"]] = &issuerUser{sub: "sub-" + strings.Split(body["email"], "@")[0], password: body["password"]}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (fi *fakeIssuer) verificationEmail(w http.ResponseWriter, r *http.Request) {
	body := decodeAccountBody(r)
	fi.mu.Lock()
	defer fi.mu.Unlock()
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if bearer == "" {
		oauthError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	fi.bearers = append(fi.bearers, bearer)
	fi.mails = append(fi.mails, "verify:"+body["email"])
	w.WriteHeader(http.StatusNoContent)
}

func (fi *fakeIssuer) passwordReset(w http.ResponseWriter, r *http.Request) {
	body := decodeAccountBody(r)
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if _, ok := fi.users[body["email"]]; !ok {
		oauthError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND", "")
		return
	}
	fi.mails = append(fi.mails, "reset:"+body["email"])
	w.WriteHeader(http.StatusNoContent)
}
