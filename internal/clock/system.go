package clock

import (
	"context"
	"time"
)

type SystemClock struct{}

func (SystemClock) Now(ctx context.Context) time.Time {
	if t, ok := FromContext(ctx); ok {
		return t
	}
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now(context.Context) time.Time {
	return time.Time(f).UTC()
}

type frozenKey struct{}

// WithTime pins SystemClock to t for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, frozenKey{}, t.UTC())
}

func FromContext(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	t, ok := ctx.Value(frozenKey{}).(time.Time)
	return t, ok
}
