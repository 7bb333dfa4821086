package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSignPayload_Stripe(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	name, value, err := signPayload(signOptions{provider: "Stripe", secret: "whsec_x", timestamp: 1700000000}, payload)
	require.NoError(t, err)
	assert.Equal(t, signature.StripeSignatureHeader, name)

	v, err := signature.NewStripeVerifier([]string{"whsec_x"}, clock.Fixed(time.Unix(1700000000, 0)), zap.NewNop())
	require.NoError(t, err)
	assert.True(t, v.Verify(context.Background(), payload, value))
}

func TestSignPayload_Cryptomus(t *testing.T) {
	payload := []byte(`{"uuid":"u-1","status":"paid"}`)
	name, value, err := signPayload(signOptions{provider: "cryptomus", secret: "key"}, payload)
	require.NoError(t, err)
	assert.Equal(t, signature.CryptomusSignatureHeader, name)

	c, err := signature.NewCryptomus([]string{"key"}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, c.Verify(context.Background(), payload, value))
}

func TestSignPayload_Errors(t *testing.T) {
	_, _, err := signPayload(signOptions{provider: "paypal", secret: "x"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)

	_, _, err = signPayload(signOptions{provider: "coingate", secret: "x"}, nil)
	assert.Error(t, err)
}

func TestSignCmd_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"payment_id":1,"payment_status":"finished"}`), 0o600))

	var out bytes.Buffer
	cmd := newSignCmd(&out)
	cmd.SetArgs([]string{"--provider", "nowpayments", "--secret", "ipn", "--file", path})
	require.NoError(t, cmd.Execute())

	line := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(line, signature.NowPaymentsSignatureHeader+": "), line)

	v, err := signature.New(domain.ProviderNowPayments, signature.Options{Secrets: []string{"ipn"}})
	require.NoError(t, err)
	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, v.Verify(context.Background(), payload, strings.TrimPrefix(line, signature.NowPaymentsSignatureHeader+": ")))
}

func TestSignCmd_Stdin(t *testing.T) {
	var out bytes.Buffer
	cmd := newSignCmd(&out)
	cmd.SetIn(strings.NewReader(`x`))
	cmd.SetArgs([]string{"--provider", "coingate", "--secret", "cb", "--order-id", "42"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "token: "+signature.CoinGateToken("cb", "42")+"\n", out.String())
}

func TestReadVersionFromEnv(t *testing.T) {
	t.Setenv("APP_VERSION", " 1.2.3 ")
	assert.Equal(t, "1.2.3", readVersionFromEnv())
	t.Setenv("APP_VERSION", "")
	assert.Equal(t, "dev", readVersionFromEnv())
}
