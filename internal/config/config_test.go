package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "paygate", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 900, cfg.Cryptomus.Lifetime)
	assert.Equal(t, 30, cfg.Stripe.DaysUntilDue)
	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.Stripe.WebhookSecrets)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAYGATE_APP_BASE_URL", "https://shop.test/")
	t.Setenv("PAYGATE_APP_BACKEND_URL", "https://api.shop.test")
	t.Setenv("PAYGATE_STRIPE_WEBHOOK_SECRETS", "whsec_a, whsec_b")
	t.Setenv("PAYGATE_COINGATE_SANDBOX", "true")
	t.Setenv("PAYGATE_REDIS_DB", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test", cfg.App.BaseURL)
	assert.Equal(t, []string{"whsec_a", "whsec_b"}, cfg.Stripe.WebhookSecrets)
	assert.True(t, cfg.CoinGate.Sandbox)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_DotEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("PAYGATE_NOWPAYMENTS_IPN_SECRET=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PAYGATE_NOWPAYMENTS_IPN_SECRET") })

	file := filepath.Join(dir, "paygate.yaml")
	require.NoError(t, os.WriteFile(file, []byte("http:\n  addr: \":9090\"\ndatabase:\n  driver: Postgres\n  dsn: postgres://localhost/paygate\n"), 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.NowPayments.IPNSecret)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("PAYGATE_DATABASE_DRIVER", "mysql")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("PAYGATE_DATABASE_DRIVER", "sqlite")
	t.Setenv("PAYGATE_APP_ENV", "production")
	_, err = Load("")
	assert.ErrorContains(t, err, "vault.aes_key")

	t.Setenv("PAYGATE_VAULT_AES_KEY", "k")
	_, err = Load("")
	assert.NoError(t, err)
}
