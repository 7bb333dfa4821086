package signature

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"go.uber.org/zap"
)

const NowPaymentsSignatureHeader = "x-nowpayments-sig"

// NowPaymentsVerifier checks IPN callbacks. NOWPayments signs the callback
// object re-encoded with its keys sorted, so this is the one scheme where the
// payload is re-serialized before hashing.
type NowPaymentsVerifier struct {
	secrets [][]byte
	log     *zap.Logger
}

func (v *NowPaymentsVerifier) Provider() domain.Provider { return domain.ProviderNowPayments }

func (v *NowPaymentsVerifier) Verify(_ context.Context, payload []byte, signature string) (ok bool) {
	defer failClosed(v.log, &ok)

	provided := []byte(strings.ToLower(strings.TrimSpace(signature)))
	if len(provided) == 0 {
		v.log.Warn("webhook signature rejected", zap.String("reason", "missing signature"))
		return false
	}

	sorted, err := SortedJSON(payload)
	if err != nil {
		v.log.Warn("webhook signature rejected", zap.String("reason", "payload is not a json object"))
		return false
	}

	for _, secret := range v.secrets {
		if hmac.Equal([]byte(nowPaymentsDigest(secret, sorted)), provided) {
			return true
		}
	}

	v.log.Warn("webhook signature rejected", zap.String("reason", "digest mismatch"))
	return false
}

// SignNowPayments returns the x-nowpayments-sig value for payload.
func SignNowPayments(secret string, payload []byte) (string, error) {
	sorted, err := SortedJSON(payload)
	if err != nil {
		return "", err
	}
	return nowPaymentsDigest([]byte(secret), sorted), nil
}

// SortedJSON re-encodes a JSON object with keys sorted at every level.
// Numbers are carried through verbatim.
func SortedJSON(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("signature: payload is null")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("signature: trailing data after json object")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nowPaymentsDigest(secret, sorted []byte) string {
	mac := hmac.New(sha512.New, secret)
	_, _ = mac.Write(sorted)
	return hex.EncodeToString(mac.Sum(nil))
}
