package stripe

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/railzwaylabs/paygate/internal/clock"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/signature"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) FindCustomerByEmail(ctx context.Context, email string) (*stripego.Customer, error) {
	args := m.Called(ctx, email)
	c, _ := args.Get(0).(*stripego.Customer)
	return c, args.Error(1)
}

func (m *mockAPI) CreateCustomer(ctx context.Context, email string) (*stripego.Customer, error) {
	args := m.Called(ctx, email)
	c, _ := args.Get(0).(*stripego.Customer)
	return c, args.Error(1)
}

func (m *mockAPI) CreateInvoice(ctx context.Context, params *stripego.InvoiceParams) (*stripego.Invoice, error) {
	args := m.Called(ctx, params)
	inv, _ := args.Get(0).(*stripego.Invoice)
	return inv, args.Error(1)
}

func (m *mockAPI) CreateInvoiceItem(ctx context.Context, params *stripego.InvoiceItemParams) (*stripego.InvoiceItem, error) {
	args := m.Called(ctx, params)
	item, _ := args.Get(0).(*stripego.InvoiceItem)
	return item, args.Error(1)
}

func (m *mockAPI) GetInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	args := m.Called(ctx, id)
	inv, _ := args.Get(0).(*stripego.Invoice)
	return inv, args.Error(1)
}

func (m *mockAPI) FinalizeInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	args := m.Called(ctx, id)
	inv, _ := args.Get(0).(*stripego.Invoice)
	return inv, args.Error(1)
}

func (m *mockAPI) SendInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	args := m.Called(ctx, id)
	inv, _ := args.Get(0).(*stripego.Invoice)
	return inv, args.Error(1)
}

var testNow = time.Unix(1700000000, 0)

func newTestAdapter(t *testing.T, api API, config map[string]any) *Adapter {
	t.Helper()
	factory := NewFactory(clock.Fixed(testNow), zap.NewNop()).WithAPI(func(string, string) API { return api })
	adapter, err := factory.NewAdapter(paymentdomain.AdapterConfig{Provider: paymentdomain.ProviderStripe, Config: config})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func TestFactory_RequiresWebhookSecret(t *testing.T) {
	_, err := NewFactory(nil, nil).NewAdapter(paymentdomain.AdapterConfig{Config: map[string]any{"api_key": "sk_test"}})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestAdapter_Verify(t *testing.T) {
	a := newTestAdapter(t, nil, map[string]any{
		"webhook_secret":  "whsec_test",
		"webhook_secrets": []any{"whsec_old"},
	})
	body := []byte(`{"id":1}`)
	ctx := context.Background()

	headers := http.Header{}
	headers.Set(signature.StripeSignatureHeader, signature.SignStripe("whsec_test", testNow.Unix(), body))
	assert.NoError(t, a.Verify(ctx, body, headers))

	headers.Set(signature.StripeSignatureHeader, signature.SignStripe("whsec_old", testNow.Unix(), body))
	assert.NoError(t, a.Verify(ctx, body, headers))

	headers.Set(signature.StripeSignatureHeader, signature.SignStripe("whsec_test", testNow.Unix()-301, body))
	assert.ErrorIs(t, a.Verify(ctx, body, headers), paymentdomain.ErrInvalidSignature)

	assert.ErrorIs(t, a.Verify(ctx, body, http.Header{}), paymentdomain.ErrInvalidSignature)
}

func TestAdapter_ParseInvoicePaid(t *testing.T) {
	a := newTestAdapter(t, nil, map[string]any{"webhook_secret": "whsec_test"})
	payload := []byte(`{"id":"evt_1","type":"invoice.paid","created":1700000000,"data":{"object":{"id":"in_1","status":"paid","amount_paid":1999,"currency":"usd","created":1699999000,"metadata":{"order_id":"123456"}}}}`)

	event, err := a.Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.ProviderStripe, event.Provider)
	assert.Equal(t, "evt_1", event.ProviderEventID)
	assert.Equal(t, "in_1", event.ProviderPaymentID)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, event.Status)
	assert.True(t, decimal.RequireFromString("19.99").Equal(event.Amount))
	assert.Equal(t, "USD", event.Currency)
	require.NotNil(t, event.OrderID)
	assert.Equal(t, int64(123456), event.OrderID.Int64())
	assert.Equal(t, time.Unix(1699999000, 0).UTC(), event.OccurredAt)
}

func TestAdapter_ParseEvents(t *testing.T) {
	a := newTestAdapter(t, nil, map[string]any{"webhook_secret": "whsec_test"})

	tests := []struct {
		name      string
		payload   string
		paymentID string
		want      paymentdomain.PaymentStatus
	}{
		{
			name:      "invoice failed",
			payload:   `{"id":"evt_2","type":"invoice.payment_failed","data":{"object":{"id":"in_2","status":"open","amount_due":500,"currency":"usd"}}}`,
			paymentID: "in_2",
			want:      paymentdomain.PaymentStatusFailed,
		},
		{
			name:      "invoice voided",
			payload:   `{"id":"evt_3","type":"invoice.voided","data":{"object":{"id":"in_3","status":"void","currency":"usd"}}}`,
			paymentID: "in_3",
			want:      paymentdomain.PaymentStatusFailed,
		},
		{
			name:      "intent succeeded for invoice",
			payload:   `{"id":"evt_4","type":"payment_intent.succeeded","data":{"object":{"id":"pi_4","status":"succeeded","amount":500,"amount_received":500,"currency":"usd","invoice":"in_4"}}}`,
			paymentID: "in_4",
			want:      paymentdomain.PaymentStatusCompleted,
		},
		{
			name:      "intent failed",
			payload:   `{"id":"evt_5","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_5","status":"requires_payment_method","amount":500,"currency":"usd"}}}`,
			paymentID: "pi_5",
			want:      paymentdomain.PaymentStatusFailed,
		},
		{
			name:      "full refund",
			payload:   `{"id":"evt_6","type":"charge.refunded","data":{"object":{"id":"ch_6","amount":500,"amount_refunded":500,"currency":"usd","invoice":"in_6"}}}`,
			paymentID: "in_6",
			want:      paymentdomain.PaymentStatusRefunded,
		},
		{
			name:      "partial refund",
			payload:   `{"id":"evt_7","type":"charge.refunded","data":{"object":{"id":"ch_7","amount":500,"amount_refunded":200,"currency":"usd","payment_intent":"pi_7"}}}`,
			paymentID: "pi_7",
			want:      paymentdomain.PaymentStatusPartiallyRefunded,
		},
		{
			name:      "checkout session",
			payload:   `{"id":"evt_8","type":"checkout.session.completed","data":{"object":{"id":"cs_8","client_reference_id":"42","payment_status":"paid","amount_total":500,"currency":"usd"}}}`,
			paymentID: "cs_8",
			want:      paymentdomain.PaymentStatusCompleted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := a.Parse(context.Background(), []byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.paymentID, event.ProviderPaymentID)
			assert.Equal(t, tt.want, event.Status)
		})
	}
}

func TestAdapter_ParseRejects(t *testing.T) {
	a := newTestAdapter(t, nil, map[string]any{"webhook_secret": "whsec_test"})
	ctx := context.Background()

	_, err := a.Parse(ctx, []byte(`not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = a.Parse(ctx, []byte(`{"type":"invoice.paid"}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	_, err = a.Parse(ctx, []byte(`{"id":"evt_9","type":"customer.created","data":{"object":{}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	_, err = a.Parse(ctx, []byte(`{"id":"evt_10","type":"invoice.paid","data":{"object":{"status":"paid"}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}

func TestAdapter_CreatePayment(t *testing.T) {
	api := &mockAPI{}
	a := newTestAdapter(t, api, map[string]any{"webhook_secret": "whsec_test", "api_key": "sk_test", "days_until_due": float64(7)})
	ctx := context.Background()

	api.On("FindCustomerByEmail", ctx, "buyer@example.com").Return(nil, nil).Once()
	api.On("CreateCustomer", ctx, "buyer@example.com").Return(&stripego.Customer{ID: "cus_1"}, nil).Once()
	api.On("CreateInvoice", ctx, mock.MatchedBy(func(p *stripego.InvoiceParams) bool {
		return *p.Customer == "cus_1" &&
			*p.Currency == "usd" &&
			*p.CollectionMethod == "send_invoice" &&
			*p.DaysUntilDue == 7 &&
			*p.AutoAdvance &&
			p.Metadata["order_id"] == "77"
	})).Return(&stripego.Invoice{ID: "in_1", Status: stripego.InvoiceStatusDraft}, nil).Once()
	api.On("CreateInvoiceItem", ctx, mock.MatchedBy(func(p *stripego.InvoiceItemParams) bool {
		return *p.Invoice == "in_1" && *p.Amount == 2500 && *p.Description == "Sticker"
	})).Return(&stripego.InvoiceItem{ID: "ii_1"}, nil).Once()
	api.On("FinalizeInvoice", ctx, "in_1").Return(&stripego.Invoice{ID: "in_1", Status: stripego.InvoiceStatusOpen}, nil).Once()
	api.On("SendInvoice", ctx, "in_1").Return(&stripego.Invoice{
		ID:               "in_1",
		Status:           stripego.InvoiceStatusOpen,
		HostedInvoiceURL: "https://invoice.stripe.com/i/in_1",
	}, nil).Once()

	payment, err := a.CreatePayment(ctx, paymentdomain.PaymentRequest{
		OrderID:       77,
		Amount:        decimal.RequireFromString("25"),
		PriceCurrency: "USD",
		CustomerEmail: "buyer@example.com",
		LineItems: []paymentdomain.LineItem{
			{Description: "Sticker", UnitAmount: decimal.RequireFromString("12.50"), Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "in_1", payment.ProviderPaymentID)
	assert.Equal(t, paymentdomain.PaymentStatusPending, payment.Status)
	assert.Equal(t, "https://invoice.stripe.com/i/in_1", payment.PaymentURL)
	assert.NotEmpty(t, payment.Raw)
	api.AssertExpectations(t)
}

func TestAdapter_CreatePaymentReusesCustomer(t *testing.T) {
	api := &mockAPI{}
	a := newTestAdapter(t, api, map[string]any{"webhook_secret": "whsec_test", "api_key": "sk_test"})
	ctx := context.Background()

	api.On("FindCustomerByEmail", ctx, "buyer@example.com").Return(&stripego.Customer{ID: "cus_9"}, nil).Once()
	api.On("CreateInvoice", ctx, mock.Anything).Return(&stripego.Invoice{ID: "in_2"}, nil).Once()
	api.On("CreateInvoiceItem", ctx, mock.MatchedBy(func(p *stripego.InvoiceItemParams) bool {
		return *p.Customer == "cus_9" && *p.Amount == 1000 && *p.Description == "Order #5"
	})).Return(&stripego.InvoiceItem{}, nil).Once()
	api.On("FinalizeInvoice", ctx, "in_2").Return(nil, errors.New("boom")).Once()

	_, err := a.CreatePayment(ctx, paymentdomain.PaymentRequest{
		OrderID:       5,
		Amount:        decimal.RequireFromString("10"),
		CustomerEmail: "buyer@example.com",
		Title:         "Order #5",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrProviderRequest)
	api.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	api.AssertExpectations(t)
}

func TestAdapter_CreatePaymentRequiresAPIKey(t *testing.T) {
	a := newTestAdapter(t, nil, map[string]any{"webhook_secret": "whsec_test"})
	_, err := a.CreatePayment(context.Background(), paymentdomain.PaymentRequest{CustomerEmail: "a@b.c"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99"), "usd"))
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.RequireFromString("999.6"), "JPY"))
	assert.Equal(t, int64(13), ToMinorUnits(decimal.RequireFromString("0.125"), "eur"))
	assert.True(t, decimal.RequireFromString("5").Equal(FromMinorUnits(500, "usd")))
	assert.True(t, decimal.RequireFromString("500").Equal(FromMinorUnits(500, "krw")))
}
