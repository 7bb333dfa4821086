package domain

import (
	"context"
	"net/http"
)

type PaymentAdapter interface {
	// Webhook handling
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)

	// Outbound payment creation
	CreatePayment(ctx context.Context, req PaymentRequest) (*ProviderPayment, error)

	MapStatus(token string) PaymentStatus
}

type AdapterConfig struct {
	Provider Provider
	Label    string
	Config   map[string]any
}

type AdapterFactory interface {
	Provider() Provider
	NewAdapter(config AdapterConfig) (PaymentAdapter, error)
}

// FactoryFunc adapts a constructor to AdapterFactory.
type FactoryFunc struct {
	Name Provider
	New  func(config AdapterConfig) (PaymentAdapter, error)
}

func (f FactoryFunc) Provider() Provider { return f.Name }

func (f FactoryFunc) NewAdapter(config AdapterConfig) (PaymentAdapter, error) {
	return f.New(config)
}
