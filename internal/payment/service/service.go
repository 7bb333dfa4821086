package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/config"
	"github.com/railzwaylabs/paygate/internal/observability"
	"github.com/railzwaylabs/paygate/internal/payment/adapters"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	providerdomain "github.com/railzwaylabs/paygate/internal/providers/payment/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	webhookPathPrefix = "/api/webhooks/"
	successPath       = "/payment/success/"
	cancelPath        = "/payment/cancel/"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Repo      domain.Repository
	Registry  *adapters.Registry
	Providers providerdomain.Service
	Clock     clock.Clock
	GenID     *snowflake.Node
	Redis     *redis.Client          `optional:"true"`
	Metrics   *observability.Metrics `optional:"true"`
	Tracer    trace.Tracer           `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	registry   *adapters.Registry
	providers  providerdomain.Service
	clock      clock.Clock
	genID      *snowflake.Node
	dedupe     *eventDeduper
	metrics    *observability.Metrics
	tracer     trace.Tracer
	baseURL    string
	backendURL string
}

func NewService(p Params) domain.Service {
	tracer := p.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("payment")
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		repo:       p.Repo,
		registry:   p.Registry,
		providers:  p.Providers,
		clock:      p.Clock,
		genID:      p.GenID,
		dedupe:     newEventDeduper(p.Redis),
		metrics:    p.Metrics,
		tracer:     tracer,
		baseURL:    strings.TrimRight(p.Cfg.App.BaseURL, "/"),
		backendURL: strings.TrimRight(p.Cfg.App.BackendURL, "/"),
	}
}

func (s *Service) CreateOrder(ctx context.Context, input domain.OrderInput) (*domain.Order, error) {
	if !input.TotalAmount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	currency, err := normalizeCurrency(input.Currency)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	order := &domain.Order{
		ID:            s.genID.Generate(),
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		TotalAmount:   input.TotalAmount,
		Currency:      currency,
		Status:        domain.OrderStatusOpen,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.InsertOrder(ctx, s.db, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) GetTransaction(ctx context.Context, id snowflake.ID) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, domain.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *Service) CreatePayment(
	ctx context.Context,
	orderID snowflake.ID,
	provider domain.Provider,
	opts domain.CreatePaymentOptions,
) (*domain.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "payment.CreatePayment", trace.WithAttributes(
		attribute.String("payment.provider", provider.String()),
		attribute.String("payment.order_id", orderID.String()),
	))
	defer span.End()

	tx, err := s.createPayment(ctx, orderID, provider, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.countPayment(provider, paymentResult(err))
		return nil, err
	}
	s.countPayment(provider, "created")
	return tx, nil
}

func (s *Service) createPayment(
	ctx context.Context,
	orderID snowflake.ID,
	provider domain.Provider,
	opts domain.CreatePaymentOptions,
) (*domain.Transaction, error) {
	if !s.registry.ProviderExists(provider) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, provider)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusOpen && order.Status != domain.OrderStatusFailed {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrOrderNotPayable, order.Status)
	}

	adapter, label, err := s.adapterFor(ctx, provider)
	if err != nil {
		return nil, err
	}

	req := s.buildRequest(order, provider, opts)
	result, err := adapter.CreatePayment(ctx, req)
	if err != nil {
		s.log.Error("provider rejected payment",
			zap.String("provider", provider.String()),
			zap.String("config", label),
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
		return nil, err
	}

	status := result.Status
	if status == "" || status == domain.PaymentStatusUnknown {
		status = domain.PaymentStatusPending
	}

	now := s.clock.Now(ctx)
	tx := &domain.Transaction{
		ID:                s.genID.Generate(),
		OrderID:           order.ID,
		Provider:          provider,
		ProviderPaymentID: result.ProviderPaymentID,
		Status:            status,
		ProviderStatus:    result.ProviderStatus,
		Amount:            order.TotalAmount,
		Currency:          req.PriceCurrency,
		ReceiveCurrency:   req.ReceiveCurrency,
		PaymentURL:        result.PaymentURL,
		RawResponse:       rawJSON(result.Raw),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.InsertTransaction(ctx, s.db, tx); err != nil {
		return nil, err
	}

	s.log.Info("payment created",
		zap.String("provider", provider.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("provider_payment_id", tx.ProviderPaymentID))
	return tx, nil
}

// adapterFor builds an adapter from the first active config that the factory accepts.
func (s *Service) adapterFor(ctx context.Context, provider domain.Provider) (domain.PaymentAdapter, string, error) {
	configs, err := s.providers.ListActive(ctx, provider)
	if err != nil {
		return nil, "", err
	}
	if len(configs) == 0 {
		return nil, "", fmt.Errorf("%w: no active config for %s", domain.ErrProviderNotFound, provider)
	}

	var lastErr error
	for _, cfg := range configs {
		adapter, err := s.registry.NewAdapter(provider, cfg)
		if err != nil {
			lastErr = err
			continue
		}
		return adapter, cfg.Label, nil
	}
	return nil, "", lastErr
}

func (s *Service) buildRequest(order *domain.Order, provider domain.Provider, opts domain.CreatePaymentOptions) domain.PaymentRequest {
	id := order.ID.String()

	title := order.Title
	if title == "" {
		title = "Order #" + id
	}
	description := order.Description
	if description == "" {
		description = "Payment for Order #" + id
	}
	currency := order.Currency
	if currency == "" {
		currency = domain.DefaultPriceCurrency
	}

	return domain.PaymentRequest{
		OrderID:         order.ID,
		Amount:          order.TotalAmount,
		PriceCurrency:   currency,
		ReceiveCurrency: strings.ToUpper(strings.TrimSpace(opts.ReceiveCurrency)),
		Title:           title,
		Description:     description,
		CustomerEmail:   order.CustomerEmail,
		CallbackURL:     s.backendURL + webhookPathPrefix + provider.String(),
		SuccessURL:      s.baseURL + successPath,
		CancelURL:       s.baseURL + cancelPath,
		LineItems:       opts.LineItems,
		Metadata:        opts.Metadata,
	}
}

// paymentResult separates requests refused before any provider call from
// provider or storage failures.
func paymentResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrProviderNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrOrderNotPayable):
		return "rejected"
	default:
		return "error"
	}
}

func (s *Service) countPayment(provider domain.Provider, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.PaymentsCreated.WithLabelValues(provider.String(), result).Inc()
}

func normalizeCurrency(raw string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(raw))
	if currency == "" {
		return domain.DefaultPriceCurrency, nil
	}
	if len(currency) < 3 || len(currency) > 10 {
		return "", domain.ErrInvalidCurrency
	}
	for _, r := range currency {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", domain.ErrInvalidCurrency
		}
	}
	return currency, nil
}

func rawJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return datatypes.JSON(raw)
}

