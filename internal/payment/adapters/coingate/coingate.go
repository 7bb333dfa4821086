package coingate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-resty/resty/v2"
	"github.com/railzwaylabs/paygate/internal/payment/adapters"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/signature"
	"github.com/railzwaylabs/paygate/internal/payment/status"
	"go.uber.org/zap"
)

const (
	LiveOrdersURL    = "https://api.coingate.com/v2/orders"
	SandboxOrdersURL = "https://api-sandbox.coingate.com/v2/orders"

	// DefaultReceiveCurrency keeps the payment in the coin the shopper paid with.
	DefaultReceiveCurrency = "DO_NOT_CONVERT"
)

type Factory struct {
	log *zap.Logger
}

func NewFactory(log *zap.Logger) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{log: log}
}

func (f *Factory) Provider() paymentdomain.Provider {
	return paymentdomain.ProviderCoinGate
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret, err := adapters.RequireString(cfg.Config, "callback_secret")
	if err != nil {
		return nil, err
	}
	log := f.log.Named("payment.coingate")
	if cfg.Label != "" {
		log = log.With(zap.String("config", cfg.Label))
	}
	verifier, err := signature.New(paymentdomain.ProviderCoinGate, signature.Options{
		Secrets: []string{secret},
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidConfig, err)
	}

	ordersURL := LiveOrdersURL
	if adapters.ReadBool(cfg.Config, "sandbox") {
		ordersURL = SandboxOrdersURL
	}
	if override, ok := adapters.ReadString(cfg.Config, "api_url"); ok {
		ordersURL = override
	}

	a := &Adapter{
		verifier:  verifier,
		secret:    secret,
		ordersURL: ordersURL,
		log:       log,
	}
	if apiKey, ok := adapters.ReadString(cfg.Config, "api_key"); ok {
		a.http = resty.New().
			SetTimeout(10 * time.Second).
			SetAuthToken(apiKey)
	}
	return a, nil
}

type Adapter struct {
	verifier  signature.Verifier
	secret    string
	ordersURL string
	http      *resty.Client
	log       *zap.Logger
}

// Verify checks the callback token carried in the body.
func (a *Adapter) Verify(ctx context.Context, payload []byte, _ http.Header) error {
	if !a.verifier.Verify(ctx, payload, "") {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) MapStatus(token string) paymentdomain.PaymentStatus {
	return status.CoinGate.Map(token)
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	fields, err := signature.CallbackFields(payload)
	if err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	id := strings.TrimSpace(fields.Get("id"))
	token := strings.ToLower(strings.TrimSpace(fields.Get("status")))
	if id == "" || token == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount, err := adapters.ParseAmount(fields.Get("price_amount"))
	if err != nil {
		a.log.Warn("callback amount unreadable", zap.String("coingate_id", id), zap.String("amount", fields.Get("price_amount")))
		return nil, err
	}
	orderID := strings.TrimSpace(fields.Get("order_id"))

	// The callback token binds only order_id, so a completing status is
	// re-read from the API before it is trusted.
	if a.MapStatus(token) == paymentdomain.PaymentStatusCompleted {
		confirmed, err := a.confirmStatus(ctx, id, orderID)
		if err != nil {
			return nil, err
		}
		if confirmed != token {
			a.log.Warn("callback status differs from api",
				zap.String("coingate_id", id),
				zap.String("callback_status", token),
				zap.String("api_status", confirmed))
			token = confirmed
		}
	}
	occurredAt := time.Now().UTC()
	if created, err := time.Parse(time.RFC3339, strings.TrimSpace(fields.Get("created_at"))); err == nil {
		occurredAt = created.UTC()
	}

	return &paymentdomain.PaymentEvent{
		Provider:          paymentdomain.ProviderCoinGate,
		ProviderEventID:   id + ":" + token,
		ProviderPaymentID: id,
		EventType:         "order." + token,
		OrderID:           parseOrderID(orderID),
		Status:            a.MapStatus(token),
		ProviderStatus:    token,
		Amount:            amount,
		Currency:          strings.ToUpper(strings.TrimSpace(fields.Get("price_currency"))),
		OccurredAt:        occurredAt,
		RawPayload:        payload,
	}, nil
}

type orderResponse struct {
	ID         json.Number `json:"id"`
	Status     string      `json:"status"`
	OrderID    string      `json:"order_id"`
	PaymentURL string      `json:"payment_url"`
}

func (a *Adapter) CreatePayment(ctx context.Context, req paymentdomain.PaymentRequest) (*paymentdomain.ProviderPayment, error) {
	if a.http == nil {
		return nil, fmt.Errorf("%w: coingate api key not configured", paymentdomain.ErrInvalidConfig)
	}
	priceCurrency := strings.ToUpper(strings.TrimSpace(req.PriceCurrency))
	if priceCurrency == "" {
		priceCurrency = paymentdomain.DefaultPriceCurrency
	}
	receiveCurrency := strings.ToUpper(strings.TrimSpace(req.ReceiveCurrency))
	if receiveCurrency == "" {
		receiveCurrency = DefaultReceiveCurrency
	}
	orderID := req.OrderID.String()

	form := map[string]string{
		"order_id":         orderID,
		"price_amount":     req.Amount.String(),
		"price_currency":   priceCurrency,
		"receive_currency": receiveCurrency,
		"callback_url":     req.CallbackURL,
		"cancel_url":       req.CancelURL,
		"success_url":      req.SuccessURL,
		"title":            req.Title,
		"description":      req.Description,
		"token":            signature.CoinGateToken(a.secret, orderID),
	}
	if req.CustomerEmail != "" {
		form["purchaser_email"] = req.CustomerEmail
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(a.ordersURL)
	if err != nil {
		a.log.Error("coingate request failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("%w: coingate create order: %v", paymentdomain.ErrProviderRequest, err)
	}
	if resp.IsError() {
		a.log.Error("coingate request rejected",
			zap.String("order_id", orderID),
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("body", resp.Body()))
		return nil, fmt.Errorf("%w: coingate create order: status %d", paymentdomain.ErrProviderRequest, resp.StatusCode())
	}

	var order orderResponse
	if err := json.Unmarshal(resp.Body(), &order); err != nil || order.ID.String() == "" {
		return nil, fmt.Errorf("%w: coingate create order: unreadable response", paymentdomain.ErrProviderRequest)
	}

	a.log.Info("created coingate order", zap.String("order_id", orderID), zap.String("coingate_id", order.ID.String()))
	return &paymentdomain.ProviderPayment{
		Provider:          paymentdomain.ProviderCoinGate,
		ProviderPaymentID: order.ID.String(),
		Status:            a.MapStatus(order.Status),
		ProviderStatus:    order.Status,
		PaymentURL:        order.PaymentURL,
		Raw:               resp.Body(),
	}, nil
}

// confirmStatus fetches the order behind a callback and returns its current status.
func (a *Adapter) confirmStatus(ctx context.Context, id, orderID string) (string, error) {
	if a.http == nil {
		a.log.Error("cannot confirm paid callback without api key", zap.String("coingate_id", id))
		return "", fmt.Errorf("%w: coingate api key required to confirm callbacks", paymentdomain.ErrInvalidConfig)
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get(a.ordersURL + "/{id}")
	if err != nil {
		return "", fmt.Errorf("%w: coingate get order: %v", paymentdomain.ErrProviderRequest, err)
	}
	if resp.IsError() {
		a.log.Error("coingate order lookup rejected", zap.String("coingate_id", id), zap.Int("status", resp.StatusCode()))
		return "", fmt.Errorf("%w: coingate get order: status %d", paymentdomain.ErrProviderRequest, resp.StatusCode())
	}

	var order orderResponse
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return "", fmt.Errorf("%w: coingate get order: unreadable response", paymentdomain.ErrProviderRequest)
	}
	if order.ID.String() != id || strings.TrimSpace(order.OrderID) != orderID {
		a.log.Warn("callback does not match coingate order",
			zap.String("coingate_id", id),
			zap.String("callback_order_id", orderID),
			zap.String("api_order_id", order.OrderID))
		return "", fmt.Errorf("%w: coingate order %s does not belong to order %s", paymentdomain.ErrInvalidEvent, id, orderID)
	}
	confirmed := strings.ToLower(strings.TrimSpace(order.Status))
	if confirmed == "" {
		return "", fmt.Errorf("%w: coingate get order: empty status", paymentdomain.ErrProviderRequest)
	}
	return confirmed, nil
}

func parseOrderID(raw string) *snowflake.ID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil
	}
	return &id
}
