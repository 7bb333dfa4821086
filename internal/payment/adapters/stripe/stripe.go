package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/payment/adapters"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/signature"
	"github.com/railzwaylabs/paygate/internal/payment/status"
	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

const defaultDaysUntilDue = 30

type Factory struct {
	clock  clock.Clock
	log    *zap.Logger
	newAPI func(apiKey, apiBase string) API
}

func NewFactory(clk clock.Clock, log *zap.Logger) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{clock: clk, log: log, newAPI: newSDKClient}
}

// WithAPI replaces the Stripe client constructor.
func (f *Factory) WithAPI(newAPI func(apiKey, apiBase string) API) *Factory {
	f.newAPI = newAPI
	return f
}

func (f *Factory) Provider() paymentdomain.Provider {
	return paymentdomain.ProviderStripe
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secrets := adapters.ReadStrings(cfg.Config, "webhook_secrets")
	if secret, ok := adapters.ReadString(cfg.Config, "webhook_secret"); ok {
		secrets = append([]string{secret}, secrets...)
	}
	if len(secrets) == 0 {
		return nil, fmt.Errorf("%w: missing webhook_secret", paymentdomain.ErrInvalidConfig)
	}

	log := f.log.Named("payment.stripe")
	if cfg.Label != "" {
		log = log.With(zap.String("config", cfg.Label))
	}
	verifier, err := signature.NewStripeVerifier(secrets, f.clock, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidConfig, err)
	}

	a := &Adapter{
		verifier:     verifier,
		log:          log,
		daysUntilDue: adapters.ReadInt(cfg.Config, "days_until_due", defaultDaysUntilDue),
	}
	// The API key is optional for webhook-only configs.
	if apiKey, ok := adapters.ReadString(cfg.Config, "api_key"); ok {
		apiBase, _ := adapters.ReadString(cfg.Config, "api_base")
		a.api = f.newAPI(apiKey, apiBase)
	}
	return a, nil
}

type Adapter struct {
	verifier     *signature.StripeVerifier
	api          API
	log          *zap.Logger
	daysUntilDue int64
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if !a.verifier.Verify(ctx, payload, headers.Get(signature.StripeSignatureHeader)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) MapStatus(token string) paymentdomain.PaymentStatus {
	return status.Stripe.Map(token)
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	eventType := strings.TrimSpace(event.Type)
	a.log.Debug("parsing event", zap.String("event_id", event.ID), zap.String("event_type", eventType))

	switch eventType {
	case "invoice.paid", "invoice.payment_succeeded":
		return a.parseInvoice(event, payload, "paid")
	case "invoice.payment_failed":
		return a.parseInvoice(event, payload, "payment_failed")
	case "invoice.voided":
		return a.parseInvoice(event, payload, "void")
	case "invoice.marked_uncollectible":
		return a.parseInvoice(event, payload, "uncollectible")
	case "invoice.finalized", "invoice.sent":
		return a.parseInvoice(event, payload, "open")
	case "payment_intent.succeeded", "payment_intent.processing",
		"payment_intent.payment_failed", "payment_intent.canceled":
		return a.parsePaymentIntent(event, payload)
	case "charge.refunded":
		return a.parseChargeRefunded(event, payload)
	case "checkout.session.completed":
		return a.parseCheckoutSession(event, payload)
	default:
		a.log.Debug("unhandled event type", zap.String("event_id", event.ID), zap.String("event_type", eventType))
		return nil, paymentdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeInvoice struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	AmountDue  int64          `json:"amount_due"`
	AmountPaid int64          `json:"amount_paid"`
	Currency   string         `json:"currency"`
	Created    int64          `json:"created"`
	Metadata   map[string]any `json:"metadata"`
}

type stripePaymentIntent struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Amount         int64          `json:"amount"`
	AmountReceived int64          `json:"amount_received"`
	Currency       string         `json:"currency"`
	Created        int64          `json:"created"`
	Invoice        string         `json:"invoice"`
	Metadata       map[string]any `json:"metadata"`
}

type stripeCharge struct {
	ID             string         `json:"id"`
	Amount         int64          `json:"amount"`
	AmountRefunded int64          `json:"amount_refunded"`
	Currency       string         `json:"currency"`
	Created        int64          `json:"created"`
	Invoice        string         `json:"invoice"`
	PaymentIntent  string         `json:"payment_intent"`
	Metadata       map[string]any `json:"metadata"`
}

type stripeCheckoutSession struct {
	ID                string         `json:"id"`
	ClientReferenceID string         `json:"client_reference_id"`
	PaymentStatus     string         `json:"payment_status"`
	AmountTotal       int64          `json:"amount_total"`
	Currency          string         `json:"currency"`
	Created           int64          `json:"created"`
	Invoice           string         `json:"invoice"`
	Metadata          map[string]any `json:"metadata"`
}

func (a *Adapter) parseInvoice(event stripeEvent, payload []byte, token string) (*paymentdomain.PaymentEvent, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount := invoice.AmountPaid
	if amount <= 0 {
		amount = invoice.AmountDue
	}
	return &paymentdomain.PaymentEvent{
		Provider:          paymentdomain.ProviderStripe,
		ProviderEventID:   event.ID,
		ProviderPaymentID: invoice.ID,
		EventType:         event.Type,
		OrderID:           parseOrderID(invoice.Metadata),
		Status:            a.MapStatus(token),
		ProviderStatus:    token,
		Amount:            FromMinorUnits(amount, invoice.Currency),
		Currency:          strings.ToUpper(strings.TrimSpace(invoice.Currency)),
		OccurredAt:        timestamp(invoice.Created, event.Created),
		RawPayload:        payload,
	}, nil
}

func (a *Adapter) parsePaymentIntent(event stripeEvent, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	token := intent.Status
	if event.Type == "payment_intent.payment_failed" {
		token = "payment_failed"
	}
	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}
	return &paymentdomain.PaymentEvent{
		Provider:          paymentdomain.ProviderStripe,
		ProviderEventID:   event.ID,
		ProviderPaymentID: firstNonEmpty(intent.Invoice, intent.ID),
		EventType:         event.Type,
		OrderID:           parseOrderID(intent.Metadata),
		Status:            a.MapStatus(token),
		ProviderStatus:    token,
		Amount:            FromMinorUnits(amount, intent.Currency),
		Currency:          strings.ToUpper(strings.TrimSpace(intent.Currency)),
		OccurredAt:        timestamp(intent.Created, event.Created),
		RawPayload:        payload,
	}, nil
}

func (a *Adapter) parseChargeRefunded(event stripeEvent, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var charge stripeCharge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(charge.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	token := "refunded"
	if charge.AmountRefunded > 0 && charge.AmountRefunded < charge.Amount {
		token = "partially_refunded"
	}
	amount := charge.AmountRefunded
	if amount <= 0 {
		amount = charge.Amount
	}
	return &paymentdomain.PaymentEvent{
		Provider:          paymentdomain.ProviderStripe,
		ProviderEventID:   event.ID,
		ProviderPaymentID: firstNonEmpty(charge.Invoice, charge.PaymentIntent, charge.ID),
		EventType:         event.Type,
		OrderID:           parseOrderID(charge.Metadata),
		Status:            a.MapStatus(token),
		ProviderStatus:    token,
		Amount:            FromMinorUnits(amount, charge.Currency),
		Currency:          strings.ToUpper(strings.TrimSpace(charge.Currency)),
		OccurredAt:        timestamp(charge.Created, event.Created),
		RawPayload:        payload,
	}, nil
}

func (a *Adapter) parseCheckoutSession(event stripeEvent, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	orderID := parseOrderID(session.Metadata)
	if orderID == nil && session.ClientReferenceID != "" {
		if id, err := snowflake.ParseString(session.ClientReferenceID); err == nil {
			orderID = &id
		}
	}
	return &paymentdomain.PaymentEvent{
		Provider:          paymentdomain.ProviderStripe,
		ProviderEventID:   event.ID,
		ProviderPaymentID: firstNonEmpty(session.Invoice, session.ID),
		EventType:         event.Type,
		OrderID:           orderID,
		Status:            a.MapStatus(session.PaymentStatus),
		ProviderStatus:    session.PaymentStatus,
		Amount:            FromMinorUnits(session.AmountTotal, session.Currency),
		Currency:          strings.ToUpper(strings.TrimSpace(session.Currency)),
		OccurredAt:        timestamp(session.Created, event.Created),
		RawPayload:        payload,
	}, nil
}

// CreatePayment issues a hosted invoice for the order and emails it to the customer.
func (a *Adapter) CreatePayment(ctx context.Context, req paymentdomain.PaymentRequest) (*paymentdomain.ProviderPayment, error) {
	if a.api == nil {
		return nil, fmt.Errorf("%w: stripe api key not configured", paymentdomain.ErrInvalidConfig)
	}
	email := strings.TrimSpace(req.CustomerEmail)
	if email == "" {
		return nil, fmt.Errorf("%w: customer email is required", paymentdomain.ErrInvalidPayload)
	}
	currency := strings.ToLower(strings.TrimSpace(req.PriceCurrency))
	if currency == "" {
		currency = strings.ToLower(paymentdomain.DefaultPriceCurrency)
	}

	customer, err := a.customerFor(ctx, email)
	if err != nil {
		return nil, err
	}

	params := &stripego.InvoiceParams{
		Customer:         stripego.String(customer.ID),
		Currency:         stripego.String(currency),
		CollectionMethod: stripego.String(string(stripego.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripego.Int64(a.daysUntilDue),
		AutoAdvance:      stripego.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripego.String(req.Description)
	}
	params.AddMetadata("order_id", req.OrderID.String())
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	invoice, err := a.api.CreateInvoice(ctx, params)
	if err != nil {
		return nil, a.requestError("create invoice", err)
	}

	for _, item := range invoiceItems(req) {
		itemParams := &stripego.InvoiceItemParams{
			Customer:    stripego.String(customer.ID),
			Invoice:     stripego.String(invoice.ID),
			Currency:    stripego.String(currency),
			Description: stripego.String(item.Description),
			Amount:      stripego.Int64(ToMinorUnits(item.UnitAmount.Mul(decimal.NewFromInt(item.Quantity)), currency)),
		}
		if _, err := a.api.CreateInvoiceItem(ctx, itemParams); err != nil {
			return nil, a.requestError("create invoice item", err)
		}
	}

	invoice, err = a.FinalizeInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice, err = a.SendInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(invoice)
	a.log.Info("invoice sent",
		zap.String("order_id", req.OrderID.String()),
		zap.String("invoice_id", invoice.ID))
	return &paymentdomain.ProviderPayment{
		Provider:          paymentdomain.ProviderStripe,
		ProviderPaymentID: invoice.ID,
		Status:            a.MapStatus(string(invoice.Status)),
		ProviderStatus:    string(invoice.Status),
		PaymentURL:        invoice.HostedInvoiceURL,
		Raw:               raw,
	}, nil
}

func (a *Adapter) GetInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	if a.api == nil {
		return nil, fmt.Errorf("%w: stripe api key not configured", paymentdomain.ErrInvalidConfig)
	}
	invoice, err := a.api.GetInvoice(ctx, id)
	if err != nil {
		return nil, a.requestError("get invoice", err)
	}
	return invoice, nil
}

func (a *Adapter) FinalizeInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	if a.api == nil {
		return nil, fmt.Errorf("%w: stripe api key not configured", paymentdomain.ErrInvalidConfig)
	}
	invoice, err := a.api.FinalizeInvoice(ctx, id)
	if err != nil {
		return nil, a.requestError("finalize invoice", err)
	}
	return invoice, nil
}

func (a *Adapter) SendInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	if a.api == nil {
		return nil, fmt.Errorf("%w: stripe api key not configured", paymentdomain.ErrInvalidConfig)
	}
	invoice, err := a.api.SendInvoice(ctx, id)
	if err != nil {
		return nil, a.requestError("send invoice", err)
	}
	return invoice, nil
}

func (a *Adapter) customerFor(ctx context.Context, email string) (*stripego.Customer, error) {
	customer, err := a.api.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, a.requestError("list customers", err)
	}
	if customer != nil {
		return customer, nil
	}
	customer, err = a.api.CreateCustomer(ctx, email)
	if err != nil {
		return nil, a.requestError("create customer", err)
	}
	return customer, nil
}

func (a *Adapter) requestError(op string, err error) error {
	a.log.Error("stripe request failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: stripe %s: %v", paymentdomain.ErrProviderRequest, op, err)
}

func invoiceItems(req paymentdomain.PaymentRequest) []paymentdomain.LineItem {
	if len(req.LineItems) > 0 {
		items := make([]paymentdomain.LineItem, 0, len(req.LineItems))
		for _, item := range req.LineItems {
			if item.Quantity <= 0 {
				item.Quantity = 1
			}
			items = append(items, item)
		}
		return items
	}
	description := req.Title
	if description == "" {
		description = req.Description
	}
	return []paymentdomain.LineItem{{Description: description, UnitAmount: req.Amount, Quantity: 1}}
}

// zeroDecimal lists currencies Stripe bills in whole units.
var zeroDecimal = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

func exponent(currency string) int32 {
	if _, ok := zeroDecimal[strings.ToLower(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// ToMinorUnits converts amount to the integer unit Stripe expects, rounding half up.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(exponent(currency)).Round(0).IntPart()
}

func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -exponent(currency))
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func parseOrderID(metadata map[string]any) *snowflake.ID {
	raw := readMetadataValue(metadata, "order_id")
	if raw == "" {
		return nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil
	}
	return &id
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	switch cast := metadata[key].(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
