package signature

import (
	"context"
	"testing"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coinGateVector = "24f6d44863513daea775a52511f020a6bd21d7018ba1d45051ee720e18ca73d4"

func TestCoinGateToken(t *testing.T) {
	assert.Equal(t, coinGateVector, CoinGateToken("cg_secret", "42"))
	assert.Equal(t, coinGateVector, CoinGateToken(" cg_secret ", "42"))
	assert.NotEqual(t, coinGateVector, CoinGateToken("cg_secret", "43"))
}

func TestCoinGateVerify(t *testing.T) {
	v, err := New(domain.ProviderCoinGate, Options{Secrets: []string{"cg_secret"}})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name  string
		body  string
		token string
		want  bool
	}{
		{name: "form body", body: "id=1&order_id=42&status=paid&token=" + coinGateVector, want: true},
		{name: "json body", body: `{"id":1,"order_id":"42","status":"paid","token":"` + coinGateVector + `"}`, want: true},
		{name: "json numeric order", body: `{"order_id":42,"token":"` + coinGateVector + `"}`, want: true},
		{name: "explicit token", body: "order_id=42&status=paid", token: coinGateVector, want: true},
		{name: "explicit token wins", body: "order_id=42&token=" + coinGateVector, token: "deadbeef", want: false},
		{name: "other order", body: "order_id=43&token=" + coinGateVector, want: false},
		{name: "missing token", body: "order_id=42&status=paid", want: false},
		{name: "missing order", body: "status=paid&token=" + coinGateVector, want: false},
		{name: "broken json", body: `{"order_id":`, want: false},
		{name: "empty", body: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(ctx, []byte(tt.body), tt.token))
		})
	}
}

func TestCallbackFields(t *testing.T) {
	fields, err := CallbackFields([]byte(`{"order_id":"7","price_amount":"1.50","test":true,"extra":{"a":1},"gone":null}`))
	require.NoError(t, err)
	assert.Equal(t, "7", fields.Get("order_id"))
	assert.Equal(t, "1.50", fields.Get("price_amount"))
	assert.Equal(t, "true", fields.Get("test"))
	assert.Equal(t, `{"a":1}`, fields.Get("extra"))
	assert.False(t, fields.Has("gone"))

	fields, err = CallbackFields([]byte("order_id=7&status=paid"))
	require.NoError(t, err)
	assert.Equal(t, "paid", fields.Get("status"))
}
