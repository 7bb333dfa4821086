package adapters

import (
	"fmt"
	"strings"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/shopspring/decimal"
)

// ParseAmount reads a provider amount. A missing amount is zero, since some
// status callbacks omit it; anything else that is not a decimal is an invalid event.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", domain.ErrInvalidEvent, raw)
	}
	return amount, nil
}
