package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProcessEvent applies a verified provider event exactly once per
// (provider, provider_event_id). Replays return ErrEventAlreadyProcessed.
func (s *Service) ProcessEvent(ctx context.Context, event *domain.PaymentEvent, maskedPayload []byte) error {
	if event == nil || event.ProviderEventID == "" {
		return domain.ErrInvalidEvent
	}

	ctx, span := s.tracer.Start(ctx, "payment.ProcessEvent", trace.WithAttributes(
		attribute.String("payment.provider", event.Provider.String()),
		attribute.String("payment.event_id", event.ProviderEventID),
		attribute.String("payment.status", string(event.Status)),
	))
	defer span.End()

	claimed := s.dedupe.claim(ctx, s.log, event.Provider, event.ProviderEventID)
	if !claimed {
		s.log.Info("duplicate payment event skipped",
			zap.String("provider", event.Provider.String()),
			zap.String("event_id", event.ProviderEventID))
		return domain.ErrEventAlreadyProcessed
	}

	status, err := s.applyEvent(ctx, event, maskedPayload)
	if err != nil {
		if !errors.Is(err, domain.ErrEventAlreadyProcessed) {
			// Let the provider's retry reach the database again.
			s.dedupe.release(ctx, s.log, event.Provider, event.ProviderEventID)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.PaymentEvents.WithLabelValues(event.Provider.String(), string(status)).Inc()
	}
	return nil
}

func (s *Service) applyEvent(ctx context.Context, event *domain.PaymentEvent, maskedPayload []byte) (domain.PaymentStatus, error) {
	var applied domain.PaymentStatus
	now := s.clock.Now(ctx)

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		record := &domain.EventRecord{
			ID:              s.genID.Generate(),
			Provider:        event.Provider,
			ProviderEventID: event.ProviderEventID,
			EventType:       eventType(event),
			OrderID:         event.OrderID,
			Payload:         payloadJSON(maskedPayload),
			ReceivedAt:      now,
		}
		inserted, err := s.repo.InsertEvent(ctx, db, record)
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrEventAlreadyProcessed
		}

		tx, err := s.findTransaction(ctx, db, event)
		if err != nil {
			return err
		}

		previous := tx.Status
		next := nextStatus(previous, event.Status)
		tx.Status = next
		if event.ProviderStatus != "" {
			tx.ProviderStatus = event.ProviderStatus
		}
		if tx.ProviderPaymentID == "" {
			tx.ProviderPaymentID = event.ProviderPaymentID
		}
		tx.UpdatedAt = now
		if err := s.repo.UpdateTransaction(ctx, db, tx); err != nil {
			return err
		}

		if next != previous {
			if orderStatus, ok := orderStatusFor(next); ok {
				if err := s.repo.UpdateOrderStatus(ctx, db, tx.OrderID, orderStatus, now); err != nil {
					return err
				}
			}
		}

		if err := s.repo.MarkEventProcessed(ctx, db, record.ID, now); err != nil {
			return err
		}

		applied = next
		s.log.Info("payment event applied",
			zap.String("provider", event.Provider.String()),
			zap.String("event_id", event.ProviderEventID),
			zap.String("transaction_id", tx.ID.String()),
			zap.String("from", string(previous)),
			zap.String("to", string(next)))
		return nil
	})
	return applied, err
}

func (s *Service) findTransaction(ctx context.Context, db *gorm.DB, event *domain.PaymentEvent) (*domain.Transaction, error) {
	if event.ProviderPaymentID != "" {
		tx, err := s.repo.FindTransactionByProviderPaymentID(ctx, db, event.Provider, event.ProviderPaymentID)
		if err != nil || tx != nil {
			return tx, err
		}
	}
	if event.OrderID != nil {
		tx, err := s.repo.FindLatestTransactionForOrder(ctx, db, *event.OrderID, event.Provider)
		if err != nil || tx != nil {
			return tx, err
		}
	}
	return nil, fmt.Errorf("%w: provider payment %q", domain.ErrTransactionNotFound, event.ProviderPaymentID)
}

// nextStatus keeps a completed payment completed unless a refund arrives.
// Unknown statuses never overwrite a known one.
func nextStatus(current, incoming domain.PaymentStatus) domain.PaymentStatus {
	switch {
	case incoming == "" || incoming == domain.PaymentStatusUnknown:
		return current
	case current == domain.PaymentStatusCompleted && !incoming.IsRefund():
		return current
	case current == domain.PaymentStatusRefunded && incoming != domain.PaymentStatusRefunded:
		return current
	}
	return incoming
}

func orderStatusFor(status domain.PaymentStatus) (domain.OrderStatus, bool) {
	switch status {
	case domain.PaymentStatusCompleted:
		return domain.OrderStatusPaid, true
	case domain.PaymentStatusFailed:
		return domain.OrderStatusFailed, true
	case domain.PaymentStatusRefunded:
		return domain.OrderStatusRefunded, true
	}
	return "", false
}

func eventType(event *domain.PaymentEvent) string {
	if event.EventType != "" {
		return event.EventType
	}
	if event.ProviderStatus != "" {
		return event.ProviderStatus
	}
	return string(event.Status)
}

func payloadJSON(masked []byte) datatypes.JSON {
	if raw := rawJSON(masked); raw != nil {
		return raw
	}
	return datatypes.JSON("{}")
}

// eventTTL bounds how long Redis remembers an event; the unique index is the
// durable guard.
const eventTTL = 72 * time.Hour
