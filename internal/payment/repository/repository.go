package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindOrderByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	if err := db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) UpdateOrderStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.OrderStatus, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": at}).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Create(tx).Error
}

func (r *repo) UpdateTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Save(tx).Error
}

func (r *repo) FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	return firstTransaction(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindTransactionByProviderPaymentID(ctx context.Context, db *gorm.DB, provider domain.Provider, providerPaymentID string) (*domain.Transaction, error) {
	return firstTransaction(db.WithContext(ctx).
		Where("provider = ? AND provider_payment_id = ?", provider, providerPaymentID))
}

func (r *repo) FindLatestTransactionForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, provider domain.Provider) (*domain.Transaction, error) {
	return firstTransaction(db.WithContext(ctx).
		Where("order_id = ? AND provider = ?", orderID, provider).
		Order("created_at DESC").
		Order("id DESC"))
}

func (r *repo) ListTransactionsByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&txs).Error
	return txs, err
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Update("processed_at", at).Error
}

func firstTransaction(q *gorm.DB) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := q.First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}
