package providers

import (
	"github.com/railzwaylabs/paygate/internal/payment"
	providerpayment "github.com/railzwaylabs/paygate/internal/providers/payment"
	"github.com/railzwaylabs/paygate/internal/security/vault"
	"go.uber.org/fx"
)

// Module wires provider credentials, the adapter registry and the payment services.
var Module = fx.Module("providers",
	vault.Module,
	providerpayment.Module,
	payment.Module,
)
