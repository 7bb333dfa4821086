package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/config"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/providers/payment/domain"
	"github.com/railzwaylabs/paygate/internal/security/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Repo  domain.Repository
	Clock clock.Clock
	GenID *snowflake.Node
	Vault vault.Provider `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	clock  clock.Clock
	genID  *snowflake.Node
	vault  vault.Provider
	static map[paymentdomain.Provider]paymentdomain.AdapterConfig
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("providers.payment"),
		repo:   p.Repo,
		clock:  p.Clock,
		genID:  p.GenID,
		vault:  p.Vault,
		static: staticConfigs(p.Cfg),
	}
}

func (s *Service) Create(ctx context.Context, input domain.CreateInput) (*domain.ProviderConfig, error) {
	provider, ok := paymentdomain.ParseProvider(string(input.Provider))
	if !ok {
		return nil, paymentdomain.ErrInvalidProvider
	}
	input.Provider = provider
	if len(input.Config) == 0 {
		return nil, paymentdomain.ErrInvalidConfig
	}
	if s.vault == nil {
		return nil, domain.ErrEncryptionKeyMissing
	}

	plain, err := json.Marshal(input.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidConfig, err)
	}
	sealed, err := s.vault.Encrypt(plain)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(input.Label)
	if label == "" {
		label = string(input.Provider)
	}
	now := s.clock.Now(ctx)
	row := &domain.ProviderConfig{
		ID:        s.genID.Generate(),
		Provider:  input.Provider,
		Label:     label,
		Config:    datatypes.JSON(sealed),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		return nil, err
	}

	s.log.Info("provider config stored",
		zap.String("provider", string(row.Provider)),
		zap.String("label", row.Label),
		zap.String("id", row.ID.String()))
	return row, nil
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) error {
	return s.repo.SetActive(ctx, s.db, id, active, s.clock.Now(ctx))
}

func (s *Service) ListActive(ctx context.Context, provider paymentdomain.Provider) ([]paymentdomain.AdapterConfig, error) {
	var out []paymentdomain.AdapterConfig
	if cfg, ok := s.static[provider]; ok {
		out = append(out, cfg)
	}

	rows, err := s.repo.ListActive(ctx, s.db, provider)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && s.vault == nil {
		s.log.Warn("stored provider configs skipped, vault key not configured",
			zap.String("provider", string(provider)),
			zap.Int("count", len(rows)))
		return out, nil
	}

	for _, row := range rows {
		values, err := s.decrypt(row.Config)
		if err != nil {
			s.log.Warn("provider config unreadable",
				zap.String("provider", string(provider)),
				zap.String("id", row.ID.String()),
				zap.Error(err))
			continue
		}
		out = append(out, paymentdomain.AdapterConfig{
			Provider: provider,
			Label:    row.Label,
			Config:   values,
		})
	}
	return out, nil
}

func (s *Service) decrypt(sealed datatypes.JSON) (map[string]any, error) {
	if len(sealed) == 0 {
		return nil, paymentdomain.ErrInvalidConfig
	}
	plain, err := s.vault.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidConfig, err)
	}
	var values map[string]any
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidConfig, err)
	}
	if len(values) == 0 {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return values, nil
}
