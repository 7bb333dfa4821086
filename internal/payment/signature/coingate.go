package signature

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"go.uber.org/zap"
)

// CoinGateVerifier checks the per-order token CoinGate echoes back in its
// callback body. The token is derived from the order ID when the order is
// created, so no token storage is needed.
type CoinGateVerifier struct {
	secrets [][]byte
	log     *zap.Logger
}

func (v *CoinGateVerifier) Provider() domain.Provider { return domain.ProviderCoinGate }

// Verify reads order_id and token from the callback body. A non-empty token
// argument takes precedence over the body token.
func (v *CoinGateVerifier) Verify(_ context.Context, payload []byte, token string) (ok bool) {
	defer failClosed(v.log, &ok)

	fields, err := CallbackFields(payload)
	if err != nil {
		v.log.Warn("webhook signature rejected", zap.String("reason", "unreadable callback body"))
		return false
	}
	orderID := strings.TrimSpace(fields.Get("order_id"))
	provided := strings.TrimSpace(token)
	if provided == "" {
		provided = strings.TrimSpace(fields.Get("token"))
	}
	if orderID == "" || provided == "" {
		v.log.Warn("webhook signature rejected", zap.String("reason", "missing order_id or token"))
		return false
	}

	for _, secret := range v.secrets {
		if hmac.Equal([]byte(coinGateToken(secret, orderID)), []byte(provided)) {
			return true
		}
	}

	v.log.Warn("webhook signature rejected", zap.String("reason", "token mismatch"))
	return false
}

// CoinGateToken is the callback token sent with a new order.
func CoinGateToken(secret, orderID string) string {
	return coinGateToken([]byte(strings.TrimSpace(secret)), orderID)
}

func coinGateToken(secret []byte, orderID string) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(orderID))
	return hex.EncodeToString(mac.Sum(nil))
}

// CallbackFields decodes a CoinGate callback, which is form encoded by
// default and JSON when the merchant opted in.
func CallbackFields(payload []byte) (url.Values, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, err
		}
		values := url.Values{}
		for k, raw := range obj {
			switch cast := raw.(type) {
			case nil:
			case string:
				values.Set(k, cast)
			case json.Number:
				values.Set(k, cast.String())
			case bool:
				values.Set(k, fmt.Sprintf("%t", cast))
			default:
				encoded, err := json.Marshal(cast)
				if err != nil {
					return nil, err
				}
				values.Set(k, string(encoded))
			}
		}
		return values, nil
	}
	return url.ParseQuery(string(trimmed))
}
