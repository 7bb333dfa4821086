package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods take the *gorm.DB to run on so callers can pass a transaction.
// Finders return nil, nil when nothing matches.
type Repository interface {
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) error
	FindOrderByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	UpdateOrderStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status OrderStatus, at time.Time) error

	InsertTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	UpdateTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindTransactionByProviderPaymentID(ctx context.Context, db *gorm.DB, provider Provider, providerPaymentID string) (*Transaction, error)
	FindLatestTransactionForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, provider Provider) (*Transaction, error)
	ListTransactionsByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Transaction, error)

	// InsertEvent reports false when the (provider, provider_event_id) pair already exists.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
