package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "souq.yml")
	content := `
system:
  workdir: ` + dir + `
web:
  port: 9090
database:
  type: sqlite
  name: souq_test.db
stripe:
  secret_key: sk_test_file
`
	require.NoError(t, os.WriteFile(cfile, []byte(content), 0o600))

	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_env")
	t.Setenv("SOUQ_WEB_PORT", "9191")
	t.Setenv("SOUQ_DB_DEBUG", "true")

	cfg := LoadConfig(cfile)
	assert.Equal(t, dir, cfg.System.Workdir)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "souq_test.db", cfg.Database.Name)
	assert.Equal(t, 9191, cfg.Web.Port)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, "sk_test_file", cfg.Stripe.SecretKey)
	assert.Equal(t, "whsec_env", cfg.Stripe.WebhookSecret)
	// untouched sections keep defaults
	assert.Equal(t, 72, cfg.Web.TokenTTL)
	assert.DirExists(t, cfg.GetLogDir())
}

func TestInvalidEnvIntIsIgnored(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SOUQ_SYSTEM_WORKER_DIR", dir)
	t.Setenv("SOUQ_WEB_PORT", "not-a-port")
	cfg := LoadConfig(filepath.Join(dir, "missing.yml"))
	assert.Equal(t, DefaultAppConfig.Web.Port, cfg.Web.Port)
}

func TestDefaultsRequireExplicitSecret(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SOUQ_SYSTEM_WORKER_DIR", dir)
	cfg := LoadConfig(filepath.Join(dir, "missing.yml"))
	assert.Empty(t, cfg.Web.Secret)
	assert.False(t, cfg.System.Debug)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingSecret)

	cfg.Web.Secret = "short"
	assert.ErrorIs(t, cfg.Validate(), ErrWeakSecret)

	t.Setenv("SOUQ_WEB_SECRET", "0123456789abcdef-env")
	cfg = LoadConfig(filepath.Join(dir, "missing.yml"))
	assert.NoError(t, cfg.Validate())
}
