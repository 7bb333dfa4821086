package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProviderConfig holds one set of credentials for a provider account.
// Config is the vault-encrypted JSON object handed to the adapter factory.
type ProviderConfig struct {
	ID        snowflake.ID           `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider  paymentdomain.Provider `json:"provider" gorm:"type:varchar(50);not null;index"`
	Label     string                 `json:"label" gorm:"type:varchar(100);not null"`
	Config    datatypes.JSON         `json:"-" gorm:"type:jsonb;not null"`
	IsActive  bool                   `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time              `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time              `json:"updated_at" gorm:"not null"`
}

func (ProviderConfig) TableName() string { return "payment_provider_configs" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cfg *ProviderConfig) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ProviderConfig, error)
	ListActive(ctx context.Context, db *gorm.DB, provider paymentdomain.Provider) ([]ProviderConfig, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) error
}

type CreateInput struct {
	Provider paymentdomain.Provider
	Label    string
	Config   map[string]any
}

type Service interface {
	Create(ctx context.Context, input CreateInput) (*ProviderConfig, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) error
	// ListActive returns the static configuration first, then stored configs, decrypted.
	ListActive(ctx context.Context, provider paymentdomain.Provider) ([]paymentdomain.AdapterConfig, error)
}

var (
	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
	ErrConfigNotFound       = errors.New("provider_config_not_found")
)
