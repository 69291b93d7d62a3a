package configs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/wiki-contributions/configs"
	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_OWNER", "wiki")
	t.Setenv("GITHUB_REPO", "content")
	t.Setenv("SENDGRID_API_KEY", "SG.test")
	t.Setenv("CAPTCHA_SECRET", "captcha")
	t.Setenv("ENCRYPTION_SECRET", "enc")
	t.Setenv("TOKEN_SIGNING_SECRET", "sign")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := configs.Load()
	require.NoError(t, err)
	require.Equal(t, "redis", cfg.Store.Backend)
	require.Equal(t, "main", cfg.Hosting.DefaultBranch)
	require.Equal(t, 0.5, cfg.Captcha.MinScore)
	require.Equal(t, 5, cfg.RateLimit.SubmissionMax)
	require.Equal(t, time.Hour, cfg.RateLimit.SubmissionWindow)
	require.Equal(t, 10*time.Minute, cfg.Security.CodeTTL)
	require.Equal(t, 24*time.Hour, cfg.Security.TokenTTL)
	require.False(t, cfg.Database.Enabled())
	require.Empty(t, cfg.Server.TrustedProxyCIDRs)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("CAPTCHA_MIN_SCORE", "0.7")
	t.Setenv("RATE_LIMIT_SUBMISSION_WINDOW", "30m")
	t.Setenv("ALLOWED_ORIGINS", "https://wiki.example, https://beta.wiki.example ,")
	t.Setenv("DB_HOST", "db")

	cfg, err := configs.Load()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, 0.7, cfg.Captcha.MinScore)
	require.Equal(t, 30*time.Minute, cfg.RateLimit.SubmissionWindow)
	require.Equal(t, []string{"https://wiki.example", "https://beta.wiki.example"}, cfg.Server.AllowedOrigins)
	require.True(t, cfg.Database.Enabled())
	require.Contains(t, cfg.Database.DSN, "host=db")
}

func TestLoad_MissingSecretNamesKeyOnly(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_SIGNING_SECRET", "")

	_, err := configs.Load()
	var cfgErr *contribution.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "TOKEN_SIGNING_SECRET", cfgErr.Key)
	require.NotContains(t, err.Error(), "enc")
}

func TestValidate_UnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "etcd")

	_, err := configs.Load()
	var cfgErr *contribution.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "STORE_BACKEND", cfgErr.Key)
}

func TestLoad_TrustedProxyCIDRs(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_PROXY_CIDRS", "10.0.0.0/8, 192.168.1.0/24")

	cfg, err := configs.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.1.0/24"}, cfg.Server.TrustedProxyCIDRs)

	t.Setenv("TRUSTED_PROXY_CIDRS", "10.0.0.1")
	_, err = configs.Load()
	var cfgErr *contribution.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "TRUSTED_PROXY_CIDRS", cfgErr.Key)
}
