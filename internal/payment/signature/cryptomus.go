package signature

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"go.uber.org/zap"
)

const CryptomusSignatureHeader = "sign"

// Cryptomus signs API requests and verifies webhooks with the merchant API key.
type Cryptomus struct {
	keys [][]byte
	log  *zap.Logger
}

func NewCryptomus(apiKeys []string, log *zap.Logger) (*Cryptomus, error) {
	v, err := New(domain.ProviderCryptomus, Options{Secrets: apiKeys, Logger: log})
	if err != nil {
		return nil, err
	}
	return v.(*Cryptomus), nil
}

func (c *Cryptomus) Provider() domain.Provider { return domain.ProviderCryptomus }

// Sign encodes payload as compact JSON and signs the encoding.
// Maps encode with sorted keys and structs in field order, so callers that
// send the body themselves must send exactly CanonicalJSON(payload).
func (c *Cryptomus) Sign(payload any) (string, error) {
	body, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return c.SignBody(body), nil
}

// SignBody returns md5(base64(body) + apiKey) as lowercase hex.
func (c *Cryptomus) SignBody(body []byte) string {
	encoded := base64.StdEncoding.EncodeToString(body)
	sum := md5.Sum(append([]byte(encoded), c.keys[0]...))
	return hex.EncodeToString(sum[:])
}

// SignWebhook returns the sign header Cryptomus attaches to a webhook body.
func (c *Cryptomus) SignWebhook(payload []byte) string {
	mac := hmac.New(sha256.New, c.keys[0])
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an HMAC-SHA256 of the raw webhook body against signature.
func (c *Cryptomus) Verify(_ context.Context, payload []byte, signature string) (ok bool) {
	defer failClosed(c.log, &ok)

	provided := []byte(strings.ToLower(strings.TrimSpace(signature)))
	if len(provided) == 0 {
		c.log.Warn("webhook signature rejected", zap.String("reason", "missing signature"))
		return false
	}

	for _, key := range c.keys {
		mac := hmac.New(sha256.New, key)
		_, _ = mac.Write(payload)
		expected := []byte(hex.EncodeToString(mac.Sum(nil)))
		if hmac.Equal(expected, provided) {
			return true
		}
	}

	c.log.Warn("webhook signature rejected", zap.String("reason", "digest mismatch"))
	return false
}

// CanonicalJSON is the minimal-whitespace encoding used for signed request
// bodies: no HTML escaping and non-ASCII escaped as \uXXXX.
func CanonicalJSON(payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return escapeNonASCII(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func escapeNonASCII(in []byte) []byte {
	ascii := true
	for _, b := range in {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return in
	}

	out := make([]byte, 0, len(in)+16)
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		in = in[size:]
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if r > 0xFFFF {
			r1, r2 := surrogates(r)
			out = appendUnicodeEscape(out, r1)
			out = appendUnicodeEscape(out, r2)
			continue
		}
		out = appendUnicodeEscape(out, r)
	}
	return out
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xD800 + (r>>10)&0x3FF, 0xDC00 + r&0x3FF
}

func appendUnicodeEscape(out []byte, r rune) []byte {
	hexed := strconv.FormatInt(int64(r), 16)
	out = append(out, '\\', 'u')
	for i := len(hexed); i < 4; i++ {
		out = append(out, '0')
	}
	return append(out, hexed...)
}
