package clock

import (
	"context"
	"time"

	"go.uber.org/fx"
)

// Clock is the single time source for code that compares against wall-clock time.
type Clock interface {
	Now(ctx context.Context) time.Time
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
