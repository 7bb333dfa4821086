package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/providers/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cfg *domain.ProviderConfig) error {
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ProviderConfig, error) {
	var cfg domain.ProviderConfig
	err := db.WithContext(ctx).Where("id = ?", id).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, provider paymentdomain.Provider) ([]domain.ProviderConfig, error) {
	var rows []domain.ProviderConfig
	err := db.WithContext(ctx).
		Where("provider = ? AND is_active = ?", provider, true).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) error {
	res := db.WithContext(ctx).Model(&domain.ProviderConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConfigNotFound
	}
	return nil
}
