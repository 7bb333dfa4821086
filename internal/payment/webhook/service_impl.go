package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/railzwaylabs/paygate/internal/observability"
	"github.com/railzwaylabs/paygate/internal/payment/adapters"
	paymentdomain "github.com/railzwaylabs/paygate/internal/payment/domain"
	providerdomain "github.com/railzwaylabs/paygate/internal/providers/payment/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeProcessed = "processed"
	outcomeIgnored   = "ignored"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc paymentdomain.Service
	Providers  providerdomain.Service
	Adapters   *adapters.Registry
	Metrics    *observability.Metrics `optional:"true"`
	Tracer     trace.Tracer           `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	paymentSvc paymentdomain.Service
	providers  providerdomain.Service
	adapters   *adapters.Registry
	metrics    *observability.Metrics
	tracer     trace.Tracer
}

func NewService(p Params) paymentdomain.WebhookService {
	tracer := p.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("webhook")
	}
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		paymentSvc: p.PaymentSvc,
		providers:  p.Providers,
		adapters:   p.Adapters,
		metrics:    p.Metrics,
		tracer:     tracer,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, rawProvider string, payload []byte, headers http.Header) error {
	name := strings.ToLower(strings.TrimSpace(rawProvider))
	if name == "" {
		return paymentdomain.ErrInvalidProvider
	}
	provider, ok := paymentdomain.ParseProvider(name)
	if !ok || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}

	ctx, span := s.tracer.Start(ctx, "webhook.Ingest", trace.WithAttributes(
		attribute.String("payment.provider", provider.String()),
		attribute.Int("webhook.payload_size", len(payload)),
	))
	defer span.End()

	outcome, err := s.ingest(ctx, provider, payload, headers)
	s.count(provider, outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("webhook.outcome", outcome))
	return err
}

func (s *Service) ingest(ctx context.Context, provider paymentdomain.Provider, payload []byte, headers http.Header) (string, error) {
	// CoinGate posts form-encoded callbacks; everyone else sends JSON.
	if provider != paymentdomain.ProviderCoinGate && !json.Valid(payload) {
		return outcomeFailed, paymentdomain.ErrInvalidPayload
	}

	configs, err := s.providers.ListActive(ctx, provider)
	if err != nil {
		return outcomeFailed, err
	}
	if len(configs) == 0 {
		s.log.Warn("webhook for provider without active config", zap.String("provider", provider.String()))
		return outcomeFailed, paymentdomain.ErrProviderNotFound
	}

	s.log.Debug("processing webhook",
		zap.String("provider", provider.String()),
		zap.Int("payload_size", len(payload)),
		zap.Int("config_count", len(configs)))

	adapter, label, err := s.matchAdapter(ctx, provider, payload, headers, configs)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidSignature) {
			s.log.Warn("webhook signature rejected",
				zap.String("provider", provider.String()),
				zap.Int("config_count", len(configs)),
				zap.String("reason", "no configured secret matched"))
			if s.metrics != nil {
				s.metrics.WebhooksRejected.WithLabelValues(provider.String()).Inc()
			}
			return outcomeRejected, err
		}
		s.log.Error("webhook adapter unavailable", zap.String("provider", provider.String()), zap.Error(err))
		return outcomeFailed, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Debug("webhook event ignored", zap.String("provider", provider.String()))
			return outcomeIgnored, nil
		}
		s.log.Error("webhook parse failed",
			zap.String("provider", provider.String()),
			zap.String("config", label),
			zap.Error(err))
		return outcomeFailed, err
	}
	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	if err := s.paymentSvc.ProcessEvent(ctx, event, maskPayload(payload)); err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			return outcomeDuplicate, nil
		}
		s.log.Error("webhook processing failed",
			zap.String("provider", provider.String()),
			zap.String("event_id", event.ProviderEventID),
			zap.Error(err))
		return outcomeFailed, err
	}
	return outcomeProcessed, nil
}

// matchAdapter returns the adapter of the first config whose secret verifies the payload.
func (s *Service) matchAdapter(
	ctx context.Context,
	provider paymentdomain.Provider,
	payload []byte,
	headers http.Header,
	configs []paymentdomain.AdapterConfig,
) (paymentdomain.PaymentAdapter, string, error) {
	var configErr error
	built := 0
	for _, cfg := range configs {
		adapter, err := s.adapters.NewAdapter(provider, cfg)
		if err != nil {
			s.log.Warn("provider config rejected by adapter",
				zap.String("provider", provider.String()),
				zap.String("config", cfg.Label),
				zap.Error(err))
			configErr = err
			continue
		}
		built++

		if err := adapter.Verify(ctx, payload, headers); err != nil {
			if errors.Is(err, paymentdomain.ErrInvalidSignature) {
				continue
			}
			return nil, "", err
		}
		return adapter, cfg.Label, nil
	}

	if built == 0 && configErr != nil {
		return nil, "", configErr
	}
	return nil, "", paymentdomain.ErrInvalidSignature
}

func (s *Service) count(provider paymentdomain.Provider, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhooksReceived.WithLabelValues(provider.String(), outcome).Inc()
}

// maskPayload returns the payload as a JSON object with sensitive keys masked.
// Form-encoded bodies are converted first; anything else yields nil.
func maskPayload(raw []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		obj = formObject(raw)
		if obj == nil {
			return nil
		}
	}
	maskMap(obj)
	masked, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return masked
}

func formObject(raw []byte) map[string]any {
	values, err := url.ParseQuery(string(raw))
	if err != nil || len(values) == 0 {
		return nil
	}
	obj := make(map[string]any, len(values))
	for k := range values {
		obj[k] = values.Get(k)
	}
	return obj
}

func maskMap(m map[string]any) {
	for k, v := range m {
		switch strings.ToLower(k) {
		case "card", "billing_details", "shipping_details", "payment_method_details", "wallet", "txid":
			m[k] = "***"
		default:
			if nested, ok := v.(map[string]any); ok {
				maskMap(nested)
			} else if arr, ok := v.([]any); ok {
				for _, item := range arr {
					if itemMap, ok := item.(map[string]any); ok {
						maskMap(itemMap)
					}
				}
			}
		}
	}
}
