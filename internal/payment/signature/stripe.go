package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	StripeSignatureHeader = "Stripe-Signature"

	// StripeToleranceSeconds is the replay window. A signed timestamp further
	// than this from the verifier's clock, in either direction, is rejected.
	StripeToleranceSeconds int64 = 300
)

var (
	ErrMalformedHeader  = errors.New("signature: malformed header")
	ErrMissingTimestamp = errors.New("signature: missing timestamp")
	ErrMissingDigest    = errors.New("signature: missing digest")
)

type StripeVerifier struct {
	secrets [][]byte
	clock   clock.Clock
	log     *zap.Logger
}

func NewStripeVerifier(secrets []string, clk clock.Clock, log *zap.Logger) (*StripeVerifier, error) {
	v, err := New(domain.ProviderStripe, Options{Secrets: secrets, Clock: clk, Logger: log})
	if err != nil {
		return nil, err
	}
	return v.(*StripeVerifier), nil
}

func (v *StripeVerifier) Provider() domain.Provider { return domain.ProviderStripe }

func (v *StripeVerifier) Verify(ctx context.Context, payload []byte, header string) (ok bool) {
	defer failClosed(v.log, &ok)

	timestamp, candidates, err := ParseStripeHeader(header)
	if err != nil {
		v.log.Warn("webhook signature rejected", zap.String("reason", err.Error()))
		return false
	}

	skew := v.clock.Now(ctx).Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > StripeToleranceSeconds {
		v.log.Warn("webhook signature rejected",
			zap.String("reason", "timestamp outside replay window"),
			zap.Int64("timestamp", timestamp),
			zap.Int64("skew_seconds", skew))
		return false
	}

	for _, secret := range v.secrets {
		expected := []byte(stripeDigest(secret, timestamp, payload))
		for _, candidate := range candidates {
			if hmac.Equal(expected, []byte(candidate)) {
				return true
			}
		}
	}

	v.log.Warn("webhook signature rejected",
		zap.String("reason", "digest mismatch"),
		zap.Int("candidates", len(candidates)))
	return false
}

// ParseStripeHeader splits a "t=...,v1=...,v1=..." header into its timestamp
// and v1 digests. Elements with other keys are ignored; an element without
// "=" or a repeated timestamp makes the whole header malformed.
func ParseStripeHeader(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, ErrMalformedHeader
	}

	var (
		timestamp int64
		seenT     bool
		digests   []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, ErrMalformedHeader
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "t":
			if seenT {
				return 0, nil, ErrMalformedHeader
			}
			seenT = true
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedHeader
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				digests = append(digests, value)
			}
		}
	}

	if timestamp <= 0 {
		return 0, nil, ErrMissingTimestamp
	}
	if len(digests) == 0 {
		return 0, nil, ErrMissingDigest
	}
	return timestamp, digests, nil
}

// SignStripe builds the header Stripe would send for payload at timestamp.
func SignStripe(secret string, timestamp int64, payload []byte) string {
	return "t=" + strconv.FormatInt(timestamp, 10) + ",v1=" + stripeDigest([]byte(secret), timestamp, payload)
}

func stripeDigest(secret []byte, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(strconv.AppendInt(nil, timestamp, 10))
	_, _ = mac.Write([]byte{'.'})
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
