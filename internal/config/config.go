package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const envPrefix = "PAYGATE"

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Vault       VaultConfig       `mapstructure:"vault"`
	Log         LogConfig         `mapstructure:"log"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
	Cryptomus   CryptomusConfig   `mapstructure:"cryptomus"`
	CoinGate    CoinGateConfig    `mapstructure:"coingate"`
	NowPayments NowPaymentsConfig `mapstructure:"nowpayments"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
	// BaseURL is the storefront; shoppers are sent back here after paying.
	BaseURL string `mapstructure:"base_url"`
	// BackendURL is where providers deliver webhooks.
	BackendURL string `mapstructure:"backend_url"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type VaultConfig struct {
	Provider     string   `mapstructure:"provider"`
	AESKey       string   `mapstructure:"aes_key"`
	PreviousKeys []string `mapstructure:"previous_keys"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StripeConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	WebhookSecrets []string `mapstructure:"webhook_secrets"`
	DaysUntilDue   int      `mapstructure:"days_until_due"`
}

type CryptomusConfig struct {
	APIKey     string `mapstructure:"api_key"`
	MerchantID string `mapstructure:"merchant_id"`
	BaseURL    string `mapstructure:"base_url"`
	Lifetime   int    `mapstructure:"lifetime"`
}

type CoinGateConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Sandbox        bool   `mapstructure:"sandbox"`
	CallbackSecret string `mapstructure:"callback_secret"`
}

type NowPaymentsConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APIURL    string `mapstructure:"api_url"`
	IPNSecret string `mapstructure:"ipn_secret"`
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

var Module = fx.Module("config",
	fx.Provide(func() (Config, error) {
		return Load(os.Getenv(envPrefix + "_CONFIG"))
	}),
)

func defaults(v *viper.Viper) {
	v.SetDefault("app.name", "paygate")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.backend_url", "http://localhost:8080")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "paygate.db")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("vault.provider", "aes")
	v.SetDefault("vault.aes_key", "")
	v.SetDefault("vault.previous_keys", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("stripe.api_key", "")
	v.SetDefault("stripe.webhook_secrets", []string{})
	v.SetDefault("stripe.days_until_due", 30)
	v.SetDefault("cryptomus.api_key", "")
	v.SetDefault("cryptomus.merchant_id", "")
	v.SetDefault("cryptomus.base_url", "https://api.cryptomus.com/v1")
	v.SetDefault("cryptomus.lifetime", 900)
	v.SetDefault("coingate.api_key", "")
	v.SetDefault("coingate.sandbox", false)
	v.SetDefault("coingate.callback_secret", "")
	v.SetDefault("nowpayments.api_key", "")
	v.SetDefault("nowpayments.api_url", "https://api-sandbox.nowpayments.io/v1")
	v.SetDefault("nowpayments.ipn_secret", "")
}

// Load reads .env, an optional config file, then PAYGATE_* environment
// variables, later sources winning.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.App.BaseURL = strings.TrimRight(strings.TrimSpace(c.App.BaseURL), "/")
	c.App.BackendURL = strings.TrimRight(strings.TrimSpace(c.App.BackendURL), "/")
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Stripe.WebhookSecrets = compact(c.Stripe.WebhookSecrets)
	c.Vault.PreviousKeys = compact(c.Vault.PreviousKeys)
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.App.BaseURL == "" || c.App.BackendURL == "" {
		return errors.New("config: app.base_url and app.backend_url are required")
	}
	if c.IsProduction() && strings.TrimSpace(c.Vault.AESKey) == "" {
		return errors.New("config: vault.aes_key is required in production")
	}
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
