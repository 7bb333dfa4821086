package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusRefunded OrderStatus = "refunded"
)

const DefaultPriceCurrency = "USD"

type Order struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CustomerEmail string          `json:"customer_email" gorm:"type:varchar(255)"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:numeric(20,8);not null"`
	Currency      string          `json:"currency" gorm:"type:varchar(10);not null"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(20);not null"`
	Title         string          `json:"title" gorm:"type:text"`
	Description   string          `json:"description" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

type Transaction struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID           snowflake.ID    `json:"order_id" gorm:"not null;index"`
	Provider          Provider        `json:"provider" gorm:"type:varchar(50);not null"`
	ProviderPaymentID string          `json:"provider_payment_id" gorm:"type:varchar(255);index"`
	Status            PaymentStatus   `json:"status" gorm:"type:varchar(30);not null"`
	ProviderStatus    string          `json:"provider_status" gorm:"type:varchar(50)"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(20,8);not null"`
	Currency          string          `json:"currency" gorm:"type:varchar(10);not null"`
	ReceiveCurrency   string          `json:"receive_currency,omitempty" gorm:"type:varchar(20)"`
	PaymentURL        string          `json:"payment_url,omitempty" gorm:"type:text"`
	RawResponse       datatypes.JSON  `json:"-" gorm:"type:jsonb"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "payment_transactions" }

type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider        Provider       `json:"provider" gorm:"type:varchar(50);not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:varchar(100);not null"`
	OrderID         *snowflake.ID  `json:"order_id" gorm:"index"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// PaymentEvent is the canonical payment event parsed by adapters.
type PaymentEvent struct {
	Provider          Provider
	ProviderEventID   string
	ProviderPaymentID string
	EventType         string
	OrderID           *snowflake.ID
	Status            PaymentStatus
	ProviderStatus    string
	Amount            decimal.Decimal
	Currency          string
	OccurredAt        time.Time
	RawPayload        []byte
}

type LineItem struct {
	Description string          `json:"description"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	Quantity    int64           `json:"quantity"`
}

// PaymentRequest carries everything a provider needs to open a payment for an order.
type PaymentRequest struct {
	OrderID         snowflake.ID
	Amount          decimal.Decimal
	PriceCurrency   string
	ReceiveCurrency string
	Title           string
	Description     string
	CustomerEmail   string
	CallbackURL     string
	SuccessURL      string
	CancelURL       string
	LineItems       []LineItem
	Metadata        map[string]string
}

// ProviderPayment is returned by the adapter after the provider accepted the payment.
type ProviderPayment struct {
	Provider          Provider
	ProviderPaymentID string
	Status            PaymentStatus
	ProviderStatus    string
	PaymentURL        string
	Raw               []byte
}
