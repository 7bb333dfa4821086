package cryptomus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paygate/internal/payment/adapters"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/signature"
	"github.com/railzwaylabs/paygate/internal/payment/status"
	"go.uber.org/zap"
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
	return paymentdomain.ProviderCryptomus
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	apiKey, err := adapters.RequireString(cfg.Config, "api_key")
	if err != nil {
		return nil, err
	}
	merchantID, err := adapters.RequireString(cfg.Config, "merchant_id")
	if err != nil {
		return nil, err
	}
	baseURL, _ := adapters.ReadString(cfg.Config, "base_url")

	log := f.log.Named("payment.cryptomus")
	if cfg.Label != "" {
		log = log.With(zap.String("config", cfg.Label))
	}
	keys := append([]string{apiKey}, adapters.ReadStrings(cfg.Config, "previous_api_keys")...)
	signer, err := signature.NewCryptomus(keys, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidConfig, err)
	}

	return &Adapter{
		client:   NewClient(baseURL, merchantID, signer, log),
		signer:   signer,
		lifetime: adapters.ReadInt(cfg.Config, "lifetime", DefaultLifetime),
		log:      log,
	}, nil
}

type Adapter struct {
	client   *Client
	signer   *signature.Cryptomus
	lifetime int64
	log      *zap.Logger
}

func (a *Adapter) Client() *Client { return a.client }

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if !a.signer.Verify(ctx, payload, headers.Get(signature.CryptomusSignatureHeader)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) MapStatus(token string) paymentdomain.PaymentStatus {
	return status.Cryptomus.Map(token)
}

type webhookPayload struct {
	Type          string      `json:"type"`
	UUID          string      `json:"uuid"`
	OrderID       string      `json:"order_id"`
	Amount        json.Number `json:"amount"`
	PaymentAmount json.Number `json:"payment_amount"`
	Currency      string      `json:"currency"`
	Status        string      `json:"status"`
	IsFinal       bool        `json:"is_final"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var hook webhookPayload
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	hookType := strings.ToLower(strings.TrimSpace(hook.Type))
	if hookType != "" && hookType != "payment" {
		a.log.Debug("unhandled webhook type", zap.String("type", hookType))
		return nil, paymentdomain.ErrEventIgnored
	}
	if strings.TrimSpace(hook.UUID) == "" || strings.TrimSpace(hook.Status) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount, err := adapters.ParseAmount(hook.Amount.String())
	if err != nil {
		a.log.Warn("webhook amount unreadable", zap.String("uuid", hook.UUID), zap.String("amount", hook.Amount.String()))
		return nil, err
	}
	token := strings.ToLower(strings.TrimSpace(hook.Status))
	return &paymentdomain.PaymentEvent{
		Provider: paymentdomain.ProviderCryptomus,
		// Cryptomus has no event id; one payment moves through each status once.
		ProviderEventID:   hook.UUID + ":" + token,
		ProviderPaymentID: hook.UUID,
		EventType:         "payment." + token,
		OrderID:           parseOrderID(hook.OrderID),
		Status:            a.MapStatus(token),
		ProviderStatus:    token,
		Amount:            amount,
		Currency:          strings.ToUpper(strings.TrimSpace(hook.Currency)),
		OccurredAt:        time.Now().UTC(),
		RawPayload:        payload,
	}, nil
}

func (a *Adapter) CreatePayment(ctx context.Context, req paymentdomain.PaymentRequest) (*paymentdomain.ProviderPayment, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.PriceCurrency))
	if currency == "" {
		currency = paymentdomain.DefaultPriceCurrency
	}
	payment, raw, err := a.client.CreatePayment(ctx, PaymentRequest{
		Amount:      req.Amount.String(),
		Currency:    currency,
		OrderID:     req.OrderID.String(),
		Lifetime:    a.lifetime,
		ToCurrency:  strings.ToUpper(strings.TrimSpace(req.ReceiveCurrency)),
		URLCallback: req.CallbackURL,
		URLSuccess:  req.SuccessURL,
		URLReturn:   req.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	if payment.UUID == "" {
		return nil, fmt.Errorf("%w: cryptomus response missing uuid", paymentdomain.ErrProviderRequest)
	}

	token := payment.StatusToken()
	return &paymentdomain.ProviderPayment{
		Provider:          paymentdomain.ProviderCryptomus,
		ProviderPaymentID: payment.UUID,
		Status:            pendingUnlessKnown(a.MapStatus(token)),
		ProviderStatus:    token,
		PaymentURL:        payment.URL,
		Raw:               raw,
	}, nil
}

// A freshly created invoice reports "check", which maps to processing; an
// unrecognised initial token still means the customer has not paid yet.
func pendingUnlessKnown(s paymentdomain.PaymentStatus) paymentdomain.PaymentStatus {
	if s == paymentdomain.PaymentStatusUnknown {
		return paymentdomain.PaymentStatusPending
	}
	return s
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
