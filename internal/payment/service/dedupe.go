package service

import (
	"context"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventKeyPrefix = "paygate:payment_event:"

// eventDeduper short-circuits provider retries before they reach the database.
// A nil client, or a Redis failure, always lets the event through.
type eventDeduper struct {
	client *redis.Client
}

func newEventDeduper(client *redis.Client) *eventDeduper {
	return &eventDeduper{client: client}
}

func eventKey(provider domain.Provider, eventID string) string {
	return eventKeyPrefix + provider.String() + ":" + eventID
}

func (d *eventDeduper) claim(ctx context.Context, log *zap.Logger, provider domain.Provider, eventID string) bool {
	if d == nil || d.client == nil {
		return true
	}
	ok, err := d.client.SetNX(ctx, eventKey(provider, eventID), 1, eventTTL).Result()
	if err != nil {
		log.Warn("event dedupe unavailable", zap.String("provider", provider.String()), zap.Error(err))
		return true
	}
	return ok
}

func (d *eventDeduper) release(ctx context.Context, log *zap.Logger, provider domain.Provider, eventID string) {
	if d == nil || d.client == nil {
		return
	}
	if err := d.client.Del(ctx, eventKey(provider, eventID)).Err(); err != nil {
		log.Warn("event dedupe release failed", zap.String("provider", provider.String()), zap.Error(err))
	}
}
