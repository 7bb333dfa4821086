package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClockHonorsContextTime(t *testing.T) {
	pinned := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), pinned)

	assert.Equal(t, pinned, SystemClock{}.Now(ctx))
	assert.WithinDuration(t, time.Now(), SystemClock{}.Now(context.Background()), time.Minute)
}

func TestFixed(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, at.UTC(), Fixed(at).Now(context.Background()))
}
