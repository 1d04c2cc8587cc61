package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festa-portal/portal-client/config"
	"github.com/festa-portal/portal-client/internal/adapters/backend"
	"github.com/festa-portal/portal-client/internal/cryptoutil"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
)

func mockConfig() config.AppConfig {
	cfg := config.AppConfig{
		Auth: config.AuthConfig{
			Mode: config.AuthModeMock,
			DevAuth: config.DevAuthConfig{
				TokenSecret: "bootstrap-test-secret",
				TokenTTL:    time.Hour,
				Accounts:    []string{"dev@example.com:password1:verified"},
			},
			RequestTimeout: time.Second,
		},
		Backend: config.BackendConfig{
			Source:  config.ProfileSourceHTTP,
			BaseURL: "http://127.0.0.1:1",
		},
	}
	cfg.Sanitize()
	return cfg
}

func TestInitLoggerWritesJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := InitLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Same(t, logger, slog.Default())
}

func TestRedisOptions(t *testing.T) {
	t.Run("plain address", func(t *testing.T) {
		opts, desc, err := RedisOptions(config.RedisConfig{URI: "localhost:6379", DB: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"localhost:6379"}, opts.Addrs)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, "localhost:6379", desc)
	})

	t.Run("url", func(t *testing.T) {
		opts, desc, err := RedisOptions(config.RedisConfig{URI: "redis://user:pw@cache:6380/3"})
		require.NoError(t, err)
		assert.Equal(t, []string{"cache:6380"}, opts.Addrs)
		assert.Equal(t, "user", opts.Username)
		assert.Equal(t, "pw", opts.Password)
		assert.Equal(t, 3, opts.DB)
		assert.Equal(t, "cache:6380", desc)
	})

	t.Run("sentinel", func(t *testing.T) {
		opts, desc, err := RedisOptions(config.RedisConfig{
			UseSentinel:        true,
			SentinelNodes:      []string{" s1:26379 ", "", "s2:26379"},
			SentinelMasterName: "portal",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"s1:26379", "s2:26379"}, opts.Addrs)
		assert.Equal(t, "portal", opts.MasterName)
		assert.Equal(t, "sentinel:portal", desc)
	})

	t.Run("sentinel without nodes", func(t *testing.T) {
		_, _, err := RedisOptions(config.RedisConfig{UseSentinel: true})
		require.Error(t, err)
	})

	t.Run("missing uri", func(t *testing.T) {
		_, _, err := RedisOptions(config.RedisConfig{})
		require.Error(t, err)
	})
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{Host: "db", Port: 5432, User: "us er", Password: "p@ss/word", Name: "portal"})
	assert.Contains(t, dsn, "db:5432/portal")
	assert.NotContains(t, dsn, "p@ss/word")
}

func TestBuildRoleMapper(t *testing.T) {
	mapper, err := BuildRoleMapper(map[string]string{"Staff Member": "committee"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleCommittee, mapper.Map("staff member"))
	assert.Equal(t, domainauth.RoleAdministrator, mapper.Map("ADMINISTRATOR"))

	_, err = BuildRoleMapper(map[string]string{"x": "emperor"})
	require.Error(t, err)
}

func TestBuildProfileFetcher(t *testing.T) {
	t.Run("http", func(t *testing.T) {
		fetcher, err := BuildProfileFetcher(ProfileConfig{Backend: config.BackendConfig{
			Source:  config.ProfileSourceHTTP,
			BaseURL: "http://backend.test",
		}})
		require.NoError(t, err)
		assert.IsType(t, &backend.Client{}, fetcher)
	})

	t.Run("http without base url", func(t *testing.T) {
		fetcher, err := BuildProfileFetcher(ProfileConfig{Backend: config.BackendConfig{Source: config.ProfileSourceHTTP}})
		require.Error(t, err)
		assert.Nil(t, fetcher)
	})

	t.Run("postgres without database", func(t *testing.T) {
		fetcher, err := BuildProfileFetcher(ProfileConfig{Backend: config.BackendConfig{Source: config.ProfileSourcePostgres}})
		require.Error(t, err)
		assert.Nil(t, fetcher)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := BuildProfileFetcher(ProfileConfig{Backend: config.BackendConfig{Source: "ftp"}})
		require.Error(t, err)
	})
}

func TestBuildIdentity(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		cfg := mockConfig()
		identity, err := BuildIdentity(IdentityConfig{Auth: cfg.Auth})
		require.NoError(t, err)
		require.NotNil(t, identity.Dev)
		require.NotNil(t, identity.Verifier)
		require.NoError(t, identity.Restore(context.Background()))

		session, err := identity.Provider.SignIn(context.Background(), "dev@example.com", "password1")
		require.NoError(t, err)
		token, err := session.Token(context.Background(), false)
		require.NoError(t, err)
		claims, err := identity.Verifier.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "dev@example.com", claims.Email)
		assert.True(t, claims.EmailVerified)
	})

	t.Run("oidc requires discovery", func(t *testing.T) {
		_, err := BuildIdentity(IdentityConfig{Auth: config.AuthConfig{Mode: config.AuthModeOIDC}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OIDC_DISCOVERY_URL")
	})

	t.Run("unsupported mode", func(t *testing.T) {
		_, err := BuildIdentity(IdentityConfig{Auth: config.AuthConfig{Mode: "saml"}})
		require.Error(t, err)
	})
}

func TestDeviceIDPrefersConfig(t *testing.T) {
	assert.Equal(t, "laptop", deviceID(config.SessionConfig{DeviceID: "laptop"}))
	assert.NotEmpty(t, deviceID(config.SessionConfig{}))
}

func TestBuildSealer(t *testing.T) {
	sealer, err := buildSealer(config.SessionConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, cryptoutil.PlainSealer{}, sealer)

	sealer, err = buildSealer(config.SessionConfig{EncryptionKey: strings.Repeat("ab", 32)}, nil)
	require.NoError(t, err)
	assert.IsType(t, &cryptoutil.AESGCMSealer{}, sealer)

	_, err = buildSealer(config.SessionConfig{EncryptionKey: "short"}, nil)
	require.Error(t, err)
}

func TestBuildMetricsSinkDisabled(t *testing.T) {
	assert.Nil(t, BuildMetricsSink(config.ObservabilityMetricsConfig{}, nil))
}

func TestBuildAndStartMockStack(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, mockConfig(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close()) })

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Metrics)
	require.NotNil(t, app.Identity.Dev)

	require.NoError(t, app.Start(ctx))
	require.Eventually(t, func() bool {
		return app.Auth.Snapshot().Kind() == domainauth.SnapshotSignedOut
	}, time.Second, 5*time.Millisecond)

	_, err = app.Auth.SignIn(ctx, "dev@example.com", "password1")
	require.NoError(t, err)
	// Nothing listens on the backend port, so resolution ends in an error snapshot.
	require.Eventually(t, func() bool {
		return app.Auth.Snapshot().Kind() == domainauth.SnapshotError
	}, 5*time.Second, 10*time.Millisecond)
}
