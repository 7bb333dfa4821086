package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

type OrderInput struct {
	CustomerEmail string
	TotalAmount   decimal.Decimal
	Currency      string
	Title         string
	Description   string
}

type CreatePaymentOptions struct {
	ReceiveCurrency string
	LineItems       []LineItem
	Metadata        map[string]string
}

type Service interface {
	CreateOrder(ctx context.Context, input OrderInput) (*Order, error)
	GetOrder(ctx context.Context, id snowflake.ID) (*Order, error)
	CreatePayment(ctx context.Context, orderID snowflake.ID, provider Provider, opts CreatePaymentOptions) (*Transaction, error)
	GetTransaction(ctx context.Context, id snowflake.ID) (*Transaction, error)
	ProcessEvent(ctx context.Context, event *PaymentEvent, maskedPayload []byte) error
}

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrInvalidConfig         = errors.New("invalid_config")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrOrderNotPayable       = errors.New("order_not_payable")
	ErrTransactionNotFound   = errors.New("transaction_not_found")
	ErrProviderRequest       = errors.New("provider_request_failed")
)
