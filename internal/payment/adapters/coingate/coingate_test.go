package coingate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/signature"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAdapter(t *testing.T, config map[string]any) *Adapter {
	t.Helper()
	base := map[string]any{"callback_secret": "cg_secret", "api_key": "cg_key"}
	for k, v := range config {
		base[k] = v
	}
	adapter, err := NewFactory(zap.NewNop()).NewAdapter(paymentdomain.AdapterConfig{Config: base})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func TestFactory(t *testing.T) {
	_, err := NewFactory(nil).NewAdapter(paymentdomain.AdapterConfig{Config: map[string]any{"api_key": "k"}})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)

	assert.Equal(t, LiveOrdersURL, newTestAdapter(t, nil).ordersURL)
	assert.Equal(t, SandboxOrdersURL, newTestAdapter(t, map[string]any{"sandbox": true}).ordersURL)
}

func TestAdapter_CreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cg_key", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("order_id"))
		assert.Equal(t, "12.5", r.PostForm.Get("price_amount"))
		assert.Equal(t, "EUR", r.PostForm.Get("price_currency"))
		assert.Equal(t, "BTC", r.PostForm.Get("receive_currency"))
		assert.Equal(t, "Order #42", r.PostForm.Get("title"))
		assert.Equal(t, signature.CoinGateToken("cg_secret", "42"), r.PostForm.Get("token"))
		_, _ = w.Write([]byte(`{"id":1087,"status":"new","order_id":"42","payment_url":"https://pay.coingate.com/invoice/abc"}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, map[string]any{"api_url": srv.URL})
	payment, err := a.CreatePayment(context.Background(), paymentdomain.PaymentRequest{
		OrderID:         42,
		Amount:          decimal.RequireFromString("12.50"),
		PriceCurrency:   "eur",
		ReceiveCurrency: "btc",
		Title:           "Order #42",
		Description:     "Payment for Order #42",
	})
	require.NoError(t, err)
	assert.Equal(t, "1087", payment.ProviderPaymentID)
	assert.Equal(t, paymentdomain.PaymentStatusPending, payment.Status)
	assert.Equal(t, "https://pay.coingate.com/invoice/abc", payment.PaymentURL)
}

func TestAdapter_CreatePaymentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Order is not valid"}`))
	}))
	defer srv.Close()

	_, err := newTestAdapter(t, map[string]any{"api_url": srv.URL}).CreatePayment(context.Background(), paymentdomain.PaymentRequest{OrderID: 1, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, paymentdomain.ErrProviderRequest)

	_, err = newTestAdapter(t, map[string]any{"api_key": ""}).CreatePayment(context.Background(), paymentdomain.PaymentRequest{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

// orderAPI serves GET /{id} with the given order body.
func orderAPI(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/1087", r.URL.Path)
		assert.Equal(t, "Bearer cg_key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func paidCallback(status string) url.Values {
	form := url.Values{}
	form.Set("id", "1087")
	form.Set("order_id", "42")
	form.Set("status", status)
	form.Set("price_amount", "12.50")
	form.Set("price_currency", "EUR")
	form.Set("token", signature.CoinGateToken("cg_secret", "42"))
	return form
}

func TestAdapter_VerifyAndParseCallback(t *testing.T) {
	srv := orderAPI(t, `{"id":1087,"status":"paid","order_id":"42"}`)
	a := newTestAdapter(t, map[string]any{"api_url": srv.URL})
	ctx := context.Background()

	form := url.Values{}
	form.Set("id", "1087")
	form.Set("order_id", "42")
	form.Set("status", "paid")
	form.Set("price_amount", "12.50")
	form.Set("price_currency", "EUR")
	form.Set("created_at", "2024-05-01T10:00:00+00:00")
	form.Set("token", signature.CoinGateToken("cg_secret", "42"))
	body := []byte(form.Encode())

	require.NoError(t, a.Verify(ctx, body, http.Header{}))

	event, err := a.Parse(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, "1087:paid", event.ProviderEventID)
	assert.Equal(t, "1087", event.ProviderPaymentID)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, event.Status)
	assert.Equal(t, "EUR", event.Currency)
	require.NotNil(t, event.OrderID)
	assert.Equal(t, int64(42), event.OrderID.Int64())
	assert.Equal(t, 2024, event.OccurredAt.Year())

	form.Set("order_id", "43")
	assert.ErrorIs(t, a.Verify(ctx, []byte(form.Encode()), http.Header{}), paymentdomain.ErrInvalidSignature)

	_, err = a.Parse(ctx, []byte("order_id=42"))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}

func TestAdapter_UnknownStatusFallsBackToFailed(t *testing.T) {
	a := newTestAdapter(t, nil)
	assert.Equal(t, paymentdomain.PaymentStatusFailed, a.MapStatus("mystery"))

	event, err := a.Parse(context.Background(), []byte(`{"id":5,"status":"mystery","order_id":"7"}`))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusFailed, event.Status)
}

func TestAdapter_PaidCallbackUsesAPIStatus(t *testing.T) {
	srv := orderAPI(t, `{"id":1087,"status":"pending","order_id":"42"}`)
	a := newTestAdapter(t, map[string]any{"api_url": srv.URL})

	// A replayed token with a forged status is reconciled to what CoinGate reports.
	event, err := a.Parse(context.Background(), []byte(paidCallback("paid").Encode()))
	require.NoError(t, err)
	assert.Equal(t, "1087:pending", event.ProviderEventID)
	assert.Equal(t, paymentdomain.PaymentStatusPending, event.Status)
	assert.Equal(t, "pending", event.ProviderStatus)
}

func TestAdapter_PaidCallbackRejectsForeignOrder(t *testing.T) {
	srv := orderAPI(t, `{"id":1087,"status":"paid","order_id":"99"}`)
	a := newTestAdapter(t, map[string]any{"api_url": srv.URL})

	_, err := a.Parse(context.Background(), []byte(paidCallback("confirmed").Encode()))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}

func TestAdapter_PaidCallbackConfirmationFailures(t *testing.T) {
	ctx := context.Background()
	body := []byte(paidCallback("paid").Encode())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	_, err := newTestAdapter(t, map[string]any{"api_url": srv.URL}).Parse(ctx, body)
	assert.ErrorIs(t, err, paymentdomain.ErrProviderRequest)

	_, err = newTestAdapter(t, map[string]any{"api_key": ""}).Parse(ctx, body)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)

	// Non-completing statuses need no lookup.
	event, err := newTestAdapter(t, map[string]any{"api_key": ""}).Parse(ctx, []byte(paidCallback("confirming").Encode()))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusProcessing, event.Status)
}

func TestAdapter_ParseRejectsBadAmount(t *testing.T) {
	form := paidCallback("pending")
	form.Set("price_amount", "12,50")
	_, err := newTestAdapter(t, nil).Parse(context.Background(), []byte(form.Encode()))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}
