package vault

import (
	"strings"

	"github.com/railzwaylabs/paygate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a nil Provider when no key is configured outside production;
// stored provider configs are then unavailable.
var Module = fx.Module("security.vault",
	fx.Provide(
		func(cfg config.Config, log *zap.Logger) (Provider, error) {
			if strings.TrimSpace(cfg.Vault.AESKey) == "" && !cfg.IsProduction() {
				log.Named("security.vault").Warn("vault disabled, no aes key configured")
				return nil, nil
			}
			return NewFactory(Config{
				Provider:     cfg.Vault.Provider,
				AESKey:       cfg.Vault.AESKey,
				PreviousKeys: cfg.Vault.PreviousKeys,
			})
		},
	),
)
