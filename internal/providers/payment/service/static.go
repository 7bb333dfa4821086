package service

import (
	"github.com/railzwaylabs/paygate/internal/config"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
)

const staticLabel = "static"

// staticConfigs turns the process configuration into adapter configs.
// A provider only appears once its verification secret is set.
func staticConfigs(cfg config.Config) map[paymentdomain.Provider]paymentdomain.AdapterConfig {
	out := make(map[paymentdomain.Provider]paymentdomain.AdapterConfig)

	if len(cfg.Stripe.WebhookSecrets) > 0 {
		values := map[string]any{"webhook_secrets": cfg.Stripe.WebhookSecrets}
		setIfNotEmpty(values, "api_key", cfg.Stripe.APIKey)
		if cfg.Stripe.DaysUntilDue > 0 {
			values["days_until_due"] = cfg.Stripe.DaysUntilDue
		}
		out[paymentdomain.ProviderStripe] = staticConfig(paymentdomain.ProviderStripe, values)
	}

	if cfg.Cryptomus.APIKey != "" && cfg.Cryptomus.MerchantID != "" {
		values := map[string]any{
			"api_key":     cfg.Cryptomus.APIKey,
			"merchant_id": cfg.Cryptomus.MerchantID,
		}
		setIfNotEmpty(values, "base_url", cfg.Cryptomus.BaseURL)
		if cfg.Cryptomus.Lifetime > 0 {
			values["lifetime"] = cfg.Cryptomus.Lifetime
		}
		out[paymentdomain.ProviderCryptomus] = staticConfig(paymentdomain.ProviderCryptomus, values)
	}

	if cfg.CoinGate.CallbackSecret != "" {
		values := map[string]any{
			"callback_secret": cfg.CoinGate.CallbackSecret,
			"sandbox":         cfg.CoinGate.Sandbox,
		}
		setIfNotEmpty(values, "api_key", cfg.CoinGate.APIKey)
		out[paymentdomain.ProviderCoinGate] = staticConfig(paymentdomain.ProviderCoinGate, values)
	}

	if cfg.NowPayments.IPNSecret != "" {
		values := map[string]any{"ipn_secret": cfg.NowPayments.IPNSecret}
		setIfNotEmpty(values, "api_key", cfg.NowPayments.APIKey)
		setIfNotEmpty(values, "api_url", cfg.NowPayments.APIURL)
		out[paymentdomain.ProviderNowPayments] = staticConfig(paymentdomain.ProviderNowPayments, values)
	}

	return out
}

func staticConfig(provider paymentdomain.Provider, values map[string]any) paymentdomain.AdapterConfig {
	return paymentdomain.AdapterConfig{Provider: provider, Label: staticLabel, Config: values}
}

func setIfNotEmpty(values map[string]any, key, value string) {
	if value != "" {
		values[key] = value
	}
}
