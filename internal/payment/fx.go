package payment

import (
	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/payment/adapters"
	"github.com/railzwaylabs/paygate/internal/payment/adapters/coingate"
	"github.com/railzwaylabs/paygate/internal/payment/adapters/cryptomus"
	"github.com/railzwaylabs/paygate/internal/payment/adapters/nowpayments"
	"github.com/railzwaylabs/paygate/internal/payment/adapters/stripe"
	"github.com/railzwaylabs/paygate/internal/payment/repository"
	paymentservice "github.com/railzwaylabs/paygate/internal/payment/service"
	"github.com/railzwaylabs/paygate/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewRegistry),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)

func NewRegistry(clk clock.Clock, log *zap.Logger) *adapters.Registry {
	return adapters.NewRegistry(
		stripe.NewFactory(clk, log),
		cryptomus.NewFactory(log),
		coingate.NewFactory(log),
		nowpayments.NewFactory(log),
	)
}
