package nowpayments

import (
	"bytes"
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
	DefaultAPIURL      = "https://api-sandbox.nowpayments.io/v1"
	PaymentURLTemplate = "https://nowpayments.io/payment/?iid=%s"
	QRCodeURLTemplate  = "https://api.qrserver.com/v1/create-qr-code/?size=150x150&data=%s"
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
	return paymentdomain.ProviderNowPayments
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	ipnSecret, err := adapters.RequireString(cfg.Config, "ipn_secret")
	if err != nil {
		return nil, err
	}
	log := f.log.Named("payment.nowpayments")
	if cfg.Label != "" {
		log = log.With(zap.String("config", cfg.Label))
	}
	verifier, err := signature.New(paymentdomain.ProviderNowPayments, signature.Options{
		Secrets: []string{ipnSecret},
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidConfig, err)
	}

	apiURL, ok := adapters.ReadString(cfg.Config, "api_url")
	if !ok {
		apiURL = DefaultAPIURL
	}
	a := &Adapter{verifier: verifier, log: log}
	if apiKey, ok := adapters.ReadString(cfg.Config, "api_key"); ok {
		a.http = resty.New().
			SetBaseURL(strings.TrimRight(apiURL, "/")).
			SetTimeout(10*time.Second).
			SetHeader("x-api-key", apiKey).
			SetHeader("Content-Type", "application/json")
	}
	return a, nil
}

type Adapter struct {
	verifier signature.Verifier
	http     *resty.Client
	log      *zap.Logger
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if !a.verifier.Verify(ctx, payload, headers.Get(signature.NowPaymentsSignatureHeader)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) MapStatus(token string) paymentdomain.PaymentStatus {
	return status.NowPayments.Map(token)
}

// Payment is the payment object returned by the API and posted to the IPN URL.
type Payment struct {
	PaymentID       json.Number `json:"payment_id"`
	PaymentStatus   string      `json:"payment_status"`
	PayAddress      string      `json:"pay_address,omitempty"`
	PriceAmount     json.Number `json:"price_amount,omitempty"`
	PriceCurrency   string      `json:"price_currency,omitempty"`
	PayAmount       json.Number `json:"pay_amount,omitempty"`
	PayCurrency     string      `json:"pay_currency,omitempty"`
	ActuallyPaid    json.Number `json:"actually_paid,omitempty"`
	OrderID         string      `json:"order_id,omitempty"`
	OrderDesc       string      `json:"order_description,omitempty"`
	UpdatedAt       json.Number `json:"updated_at,omitempty"`
	PaymentURL      string      `json:"payment_url,omitempty"`
	QRCodeURL       string      `json:"qr_code_url,omitempty"`
	OutcomeAmount   json.Number `json:"outcome_amount,omitempty"`
	OutcomeCurrency string      `json:"outcome_currency,omitempty"`
}

func decodePayment(raw []byte) (*Payment, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p Payment
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	p, err := decodePayment(payload)
	if err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	id := strings.TrimSpace(p.PaymentID.String())
	token := strings.ToLower(strings.TrimSpace(p.PaymentStatus))
	if id == "" || token == "" {
		a.log.Warn("invalid ipn payload", zap.Bool("has_payment_id", id != ""), zap.Bool("has_status", token != ""))
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount, err := adapters.ParseAmount(p.PriceAmount.String())
	if err != nil {
		a.log.Warn("ipn amount unreadable", zap.String("payment_id", id), zap.String("amount", p.PriceAmount.String()))
		return nil, err
	}
	occurredAt := time.Now().UTC()
	if ms, err := p.UpdatedAt.Int64(); err == nil && ms > 0 {
		occurredAt = time.UnixMilli(ms).UTC()
	}

	return &paymentdomain.PaymentEvent{
		Provider:          paymentdomain.ProviderNowPayments,
		ProviderEventID:   id + ":" + token,
		ProviderPaymentID: id,
		EventType:         "payment." + token,
		OrderID:           parseOrderID(p.OrderID),
		Status:            a.MapStatus(token),
		ProviderStatus:    token,
		Amount:            amount,
		Currency:          strings.ToUpper(strings.TrimSpace(p.PriceCurrency)),
		OccurredAt:        occurredAt,
		RawPayload:        payload,
	}, nil
}

type createPaymentRequest struct {
	PriceAmount      string `json:"price_amount"`
	PriceCurrency    string `json:"price_currency"`
	PayCurrency      string `json:"pay_currency,omitempty"`
	OrderID          string `json:"order_id"`
	OrderDescription string `json:"order_description,omitempty"`
	IPNCallbackURL   string `json:"ipn_callback_url"`
	SuccessURL       string `json:"success_url,omitempty"`
	CancelURL        string `json:"cancel_url,omitempty"`
}

func (a *Adapter) CreatePayment(ctx context.Context, req paymentdomain.PaymentRequest) (*paymentdomain.ProviderPayment, error) {
	if a.http == nil {
		return nil, fmt.Errorf("%w: nowpayments api key not configured", paymentdomain.ErrInvalidConfig)
	}
	priceCurrency := strings.ToLower(strings.TrimSpace(req.PriceCurrency))
	if priceCurrency == "" {
		priceCurrency = strings.ToLower(paymentdomain.DefaultPriceCurrency)
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(createPaymentRequest{
			PriceAmount:      req.Amount.String(),
			PriceCurrency:    priceCurrency,
			PayCurrency:      strings.ToLower(strings.TrimSpace(req.ReceiveCurrency)),
			OrderID:          req.OrderID.String(),
			OrderDescription: req.Description,
			IPNCallbackURL:   req.CallbackURL,
			SuccessURL:       req.SuccessURL,
			CancelURL:        req.CancelURL,
		}).
		Post("/payment")
	if err != nil {
		a.log.Error("nowpayments request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: nowpayments create payment: %v", paymentdomain.ErrProviderRequest, err)
	}
	if resp.IsError() {
		a.log.Error("nowpayments request rejected", zap.Int("status", resp.StatusCode()), zap.ByteString("body", resp.Body()))
		return nil, fmt.Errorf("%w: nowpayments create payment: status %d", paymentdomain.ErrProviderRequest, resp.StatusCode())
	}

	p, err := decodePayment(resp.Body())
	if err != nil || strings.TrimSpace(p.PaymentID.String()) == "" {
		return nil, fmt.Errorf("%w: nowpayments create payment: payment_id not found in response", paymentdomain.ErrProviderRequest)
	}
	p.PaymentURL = fmt.Sprintf(PaymentURLTemplate, p.PaymentID.String())
	p.QRCodeURL = fmt.Sprintf(QRCodeURLTemplate, p.PaymentURL)

	raw, err := augment(resp.Body(), p)
	if err != nil {
		return nil, fmt.Errorf("%w: nowpayments create payment: %v", paymentdomain.ErrProviderRequest, err)
	}
	return &paymentdomain.ProviderPayment{
		Provider:          paymentdomain.ProviderNowPayments,
		ProviderPaymentID: p.PaymentID.String(),
		Status:            pendingUnlessKnown(a.MapStatus(p.PaymentStatus)),
		ProviderStatus:    p.PaymentStatus,
		PaymentURL:        p.PaymentURL,
		Raw:               raw,
	}, nil
}

// GetPayment fetches the current state of a payment.
func (a *Adapter) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if a.http == nil {
		return nil, fmt.Errorf("%w: nowpayments api key not configured", paymentdomain.ErrInvalidConfig)
	}
	resp, err := a.http.R().
		SetContext(ctx).
		SetPathParam("id", paymentID).
		Get("/payment/{id}")
	if err != nil {
		return nil, fmt.Errorf("%w: nowpayments get payment: %v", paymentdomain.ErrProviderRequest, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: nowpayments get payment: status %d", paymentdomain.ErrProviderRequest, resp.StatusCode())
	}
	p, err := decodePayment(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: nowpayments get payment: %v", paymentdomain.ErrProviderRequest, err)
	}
	return p, nil
}

// augment adds payment_url and qr_code_url to the provider response without
// dropping fields the Payment struct does not model.
func augment(body []byte, p *Payment) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	obj["payment_url"] = p.PaymentURL
	obj["qr_code_url"] = p.QRCodeURL
	return json.Marshal(obj)
}

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
