package signature

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"testing/quick"
	"time"

	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testStripeSecret = "whsec_test"

var stripeNow = time.Unix(1700000000, 0)

func newStripe(t *testing.T, at time.Time, secrets ...string) *StripeVerifier {
	t.Helper()
	if len(secrets) == 0 {
		secrets = []string{testStripeSecret}
	}
	v, err := NewStripeVerifier(secrets, clock.Fixed(at), zap.NewNop())
	require.NoError(t, err)
	return v
}

func TestStripeVerify_KnownVector(t *testing.T) {
	body := []byte(`{"id":1}`)
	header := "t=1700000000,v1=2f441ba4b3b2d50d28a9ab9d9fd8880376ecd1eb5d0435401553f5d8d0a5dcf8"

	assert.Equal(t, header, SignStripe(testStripeSecret, stripeNow.Unix(), body))
	assert.True(t, newStripe(t, stripeNow).Verify(context.Background(), body, header))
}

func TestStripeVerify_ReplayWindow(t *testing.T) {
	body := []byte(`{"id":1}`)
	ctx := context.Background()

	tests := []struct {
		name   string
		offset int64
		want   bool
	}{
		{name: "now", offset: 0, want: true},
		{name: "old at tolerance", offset: -300, want: true},
		{name: "future at tolerance", offset: 300, want: true},
		{name: "old past tolerance", offset: -301, want: false},
		{name: "future past tolerance", offset: 301, want: false},
		{name: "a day old", offset: -86400, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := SignStripe(testStripeSecret, stripeNow.Unix()+tt.offset, body)
			assert.Equal(t, tt.want, newStripe(t, stripeNow).Verify(ctx, body, header))
		})
	}
}

func TestStripeVerify_SubSecondClockDoesNotShrinkWindow(t *testing.T) {
	body := []byte(`{"id":1}`)
	header := SignStripe(testStripeSecret, stripeNow.Unix()-300, body)

	v := newStripe(t, stripeNow.Add(900*time.Millisecond))
	assert.True(t, v.Verify(context.Background(), body, header))
}

func TestStripeVerify_SecondDigestMatches(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	good := stripeDigest([]byte(testStripeSecret), stripeNow.Unix(), body)
	stale := stripeDigest([]byte("whsec_old"), stripeNow.Unix(), body)
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", stripeNow.Unix(), stale, good)

	assert.True(t, newStripe(t, stripeNow).Verify(context.Background(), body, header))
}

func TestStripeVerify_RotatedSecrets(t *testing.T) {
	body := []byte(`{"id":"evt_2"}`)
	header := SignStripe("whsec_next", stripeNow.Unix(), body)

	assert.False(t, newStripe(t, stripeNow, testStripeSecret).Verify(context.Background(), body, header))
	assert.True(t, newStripe(t, stripeNow, testStripeSecret, "whsec_next").Verify(context.Background(), body, header))
}

func TestStripeVerify_MalformedHeaders(t *testing.T) {
	body := []byte(`{"id":1}`)
	digest := stripeDigest([]byte(testStripeSecret), stripeNow.Unix(), body)
	ts := stripeNow.Unix()

	headers := map[string]string{
		"empty":              "",
		"only spaces":        "   ",
		"no timestamp":       "v1=" + digest,
		"no digest":          fmt.Sprintf("t=%d", ts),
		"empty digest":       fmt.Sprintf("t=%d,v1=", ts),
		"missing delimiter":  fmt.Sprintf("t=%d,v1%s", ts, digest),
		"trailing comma":     fmt.Sprintf("t=%d,v1=%s,", ts, digest),
		"non integer t":      "t=abc,v1=" + digest,
		"float t":            fmt.Sprintf("t=%d.5,v1=%s", ts, digest),
		"zero t":             "t=0,v1=" + digest,
		"negative t":         "t=-5,v1=" + digest,
		"duplicate t":        fmt.Sprintf("t=%d,t=%d,v1=%s", ts, ts, digest),
		"only v0 digest":     fmt.Sprintf("t=%d,v0=%s", ts, digest),
		"uppercase key":      fmt.Sprintf("T=%d,V1=%s", ts, digest),
		"truncated digest":   fmt.Sprintf("t=%d,v1=%s", ts, digest[:32]),
		"overflow timestamp": "t=99999999999999999999,v1=" + digest,
	}
	v := newStripe(t, stripeNow)
	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			assert.False(t, v.Verify(context.Background(), body, header))
		})
	}
}

func TestStripeVerify_ToleratesSpacing(t *testing.T) {
	body := []byte(`{"id":1}`)
	digest := stripeDigest([]byte(testStripeSecret), stripeNow.Unix(), body)
	header := fmt.Sprintf(" t=%d , v0=ignored , v1=%s ", stripeNow.Unix(), digest)

	assert.True(t, newStripe(t, stripeNow).Verify(context.Background(), body, header))
}

func TestStripeVerify_RoundTripProperty(t *testing.T) {
	property := func(secret string, body []byte, offset int16) bool {
		if secret == "" || len(body) == 0 {
			return true
		}
		key := "whsec_" + hex.EncodeToString([]byte(secret))
		ts := stripeNow.Unix() + int64(offset)%StripeToleranceSeconds
		v, err := NewStripeVerifier([]string{key}, clock.Fixed(stripeNow), nil)
		if err != nil {
			return false
		}
		header := SignStripe(key, ts, body)
		if !v.Verify(context.Background(), body, header) {
			return false
		}

		mutated := append([]byte(nil), body...)
		mutated[int(offset&0x7fff)%len(mutated)] ^= 0x01
		return !v.Verify(context.Background(), mutated, header)
	}
	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 300}))
}

func TestStripeVerify_ReadsClockFromContext(t *testing.T) {
	body := []byte(`{"id":1}`)
	header := SignStripe(testStripeSecret, stripeNow.Unix(), body)

	v, err := NewStripeVerifier([]string{testStripeSecret}, clock.SystemClock{}, nil)
	require.NoError(t, err)

	assert.True(t, v.Verify(clock.WithTime(context.Background(), stripeNow), body, header))
	assert.False(t, v.Verify(clock.WithTime(context.Background(), stripeNow.Add(301*time.Second)), body, header))
}

type panicClock struct{}

func (panicClock) Now(context.Context) time.Time { panic("clock unavailable") }

func TestStripeVerify_PanicFailsClosed(t *testing.T) {
	body := []byte(`{"id":1}`)
	header := SignStripe(testStripeSecret, stripeNow.Unix(), body)

	v, err := New(domain.ProviderStripe, Options{Secrets: []string{testStripeSecret}, Clock: panicClock{}})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		assert.False(t, v.Verify(context.Background(), body, header))
	})
}

func TestParseStripeHeader(t *testing.T) {
	ts, digests, err := ParseStripeHeader("t=12,v1=aa,v0=bb,v1=cc")
	require.NoError(t, err)
	assert.Equal(t, int64(12), ts)
	assert.Equal(t, []string{"aa", "cc"}, digests)

	_, _, err = ParseStripeHeader("v1=aa")
	assert.ErrorIs(t, err, ErrMissingTimestamp)

	_, _, err = ParseStripeHeader("t=12")
	assert.ErrorIs(t, err, ErrMissingDigest)

	_, _, err = ParseStripeHeader("t=12;v1=aa")
	assert.ErrorIs(t, err, ErrMalformedHeader)
}
