package adapters

import (
	"fmt"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
)

func missingKey(key string) error {
	return fmt.Errorf("%w: missing %s", domain.ErrInvalidConfig, key)
}
