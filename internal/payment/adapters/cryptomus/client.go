package cryptomus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/signature"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL  = "https://api.cryptomus.com/v1"
	DefaultLifetime = 15 * 60
)

// Client talks to the merchant API. Every request body is encoded once and
// the same bytes are signed and sent.
type Client struct {
	http       *resty.Client
	merchantID string
	signer     *signature.Cryptomus
	log        *zap.Logger
}

func NewClient(baseURL, merchantID string, signer *signature.Cryptomus, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("merchant", merchantID)
	return &Client{http: hc, merchantID: merchantID, signer: signer, log: log}
}

type PaymentRequest struct {
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	OrderID        string `json:"order_id"`
	Lifetime       int64  `json:"lifetime"`
	ToCurrency     string `json:"to_currency,omitempty"`
	URLCallback    string `json:"url_callback,omitempty"`
	URLSuccess     string `json:"url_success,omitempty"`
	URLReturn      string `json:"url_return,omitempty"`
	AdditionalData string `json:"additional_data,omitempty"`
}

type PayoutRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	To       string `json:"to"`
	Network  string `json:"network,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
}

// Payment is the "result" object used by both payments and payouts.
type Payment struct {
	UUID          string `json:"uuid"`
	OrderID       string `json:"order_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	IsFinal       bool   `json:"is_final"`
	Txid          string `json:"txid"`
}

func (p Payment) StatusToken() string {
	if p.Status != "" {
		return p.Status
	}
	return p.PaymentStatus
}

type envelope struct {
	State   int             `json:"state"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, []byte, error) {
	return c.call(ctx, "/payment", req)
}

func (c *Client) PaymentInfo(ctx context.Context, uuid string) (*Payment, []byte, error) {
	return c.call(ctx, "/payment/info", map[string]string{"uuid": uuid})
}

func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (*Payment, []byte, error) {
	return c.call(ctx, "/payout", req)
}

func (c *Client) PayoutInfo(ctx context.Context, uuid string) (*Payment, []byte, error) {
	return c.call(ctx, "/payout/info", map[string]string{"uuid": uuid})
}

func (c *Client) call(ctx context.Context, endpoint string, payload any) (*Payment, []byte, error) {
	body, err := signature.CanonicalJSON(payload)
	if err != nil {
		return nil, nil, err
	}

	c.log.Info("cryptomus request", zap.String("endpoint", endpoint))
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(signature.CryptomusSignatureHeader, c.signer.SignBody(body)).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		c.log.Error("cryptomus request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, nil, fmt.Errorf("%w: cryptomus %s: %v", paymentdomain.ErrProviderRequest, endpoint, err)
	}
	if resp.IsError() {
		c.log.Error("cryptomus request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("body", resp.Body()))
		return nil, resp.Body(), fmt.Errorf("%w: cryptomus %s: status %d", paymentdomain.ErrProviderRequest, endpoint, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, resp.Body(), fmt.Errorf("%w: cryptomus %s: %v", paymentdomain.ErrProviderRequest, endpoint, err)
	}
	if env.State != 0 || len(env.Result) == 0 {
		return nil, resp.Body(), fmt.Errorf("%w: cryptomus %s: state %d %s", paymentdomain.ErrProviderRequest, endpoint, env.State, env.Message)
	}
	var payment Payment
	if err := json.Unmarshal(env.Result, &payment); err != nil {
		return nil, resp.Body(), fmt.Errorf("%w: cryptomus %s: %v", paymentdomain.ErrProviderRequest, endpoint, err)
	}
	return &payment, resp.Body(), nil
}
