package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/railzwaylabs/paygate/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestNewClientDisabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	client, err := NewClient(lc, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewClientPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := config.Config{}
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = srv.Addr()

	lc := fxtest.NewLifecycle(t)
	client, err := NewClient(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
	lc.RequireStart()
	lc.RequireStop()
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), redis.ErrClosed, "stop hook closes the client")
}

func TestNewClientUnreachable(t *testing.T) {
	cfg := config.Config{}
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	assert.Error(t, err)
}
