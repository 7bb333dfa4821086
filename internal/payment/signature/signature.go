// Package signature authenticates inbound provider webhooks and signs
// outbound provider requests.
//
// Every Verifier is stateless apart from its keys, so a single value may be
// shared by concurrent requests. Verify never panics and never returns an
// error: anything that cannot be positively authenticated is rejected.
package signature

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"go.uber.org/zap"
)

var (
	ErrUnknownProvider = errors.New("signature: unknown provider")
	ErrNoSecret        = errors.New("signature: no secret configured")
)

type Verifier interface {
	Provider() domain.Provider
	Verify(ctx context.Context, payload []byte, signature string) bool
}

// Options configures a Verifier. Secrets lists every key currently accepted;
// more than one is allowed while a key is being rotated. The first entry is
// the primary key used when signing.
type Options struct {
	Secrets []string
	Clock   clock.Clock
	Logger  *zap.Logger
}

// New returns the Verifier for provider.
func New(provider domain.Provider, opts Options) (Verifier, error) {
	secrets := normalizeSecrets(opts.Secrets)
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("payment.signature").With(zap.String("provider", provider.String()))

	switch provider {
	case domain.ProviderStripe:
		clk := opts.Clock
		if clk == nil {
			clk = clock.SystemClock{}
		}
		return &StripeVerifier{secrets: secrets, clock: clk, log: log}, nil
	case domain.ProviderCryptomus:
		return &Cryptomus{keys: secrets, log: log}, nil
	case domain.ProviderNowPayments:
		return &NowPaymentsVerifier{secrets: secrets, log: log}, nil
	case domain.ProviderCoinGate:
		return &CoinGateVerifier{secrets: secrets, log: log}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// HeaderName is the request header carrying the provider's signature.
// CoinGate has none; its token travels in the callback body.
func HeaderName(provider domain.Provider) string {
	switch provider {
	case domain.ProviderStripe:
		return StripeSignatureHeader
	case domain.ProviderCryptomus:
		return CryptomusSignatureHeader
	case domain.ProviderNowPayments:
		return NowPaymentsSignatureHeader
	}
	return ""
}

func normalizeSecrets(raw []string) [][]byte {
	out := make([][]byte, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, []byte(s))
	}
	return out
}

// failClosed turns a panic inside a verification into a rejection.
func failClosed(log *zap.Logger, ok *bool) {
	if r := recover(); r != nil {
		log.Error("signature verification panicked", zap.Any("panic", r))
		*ok = false
	}
}
