// Package status reconciles provider status vocabularies into domain.PaymentStatus.
package status

import (
	"strings"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
)

const UnknownDescription = "UNKNOWN"

// Table maps provider tokens to a PaymentStatus. Tokens missing from the
// table resolve to Fallback.
type Table struct {
	Provider domain.Provider
	Fallback domain.PaymentStatus
	Tokens   map[string]domain.PaymentStatus
}

func (t Table) Map(token string) domain.PaymentStatus {
	if status, ok := t.Tokens[normalize(token)]; ok {
		return status
	}
	return t.Fallback
}

// Known reports whether token has an explicit entry.
func (t Table) Known(token string) bool {
	_, ok := t.Tokens[normalize(token)]
	return ok
}

var CoinGate = Table{
	Provider: domain.ProviderCoinGate,
	Fallback: domain.PaymentStatusFailed,
	Tokens: map[string]domain.PaymentStatus{
		"new":                domain.PaymentStatusPending,
		"pending":            domain.PaymentStatusPending,
		"confirming":         domain.PaymentStatusProcessing,
		"paid":               domain.PaymentStatusCompleted,
		"confirmed":          domain.PaymentStatusCompleted,
		"invalid":            domain.PaymentStatusFailed,
		"expired":            domain.PaymentStatusFailed,
		"canceled":           domain.PaymentStatusFailed,
		"refunded":           domain.PaymentStatusRefunded,
		"partially_refunded": domain.PaymentStatusPartiallyRefunded,
	},
}

var Cryptomus = Table{
	Provider: domain.ProviderCryptomus,
	Fallback: domain.PaymentStatusUnknown,
	Tokens: map[string]domain.PaymentStatus{
		"paid":                 domain.PaymentStatusCompleted,
		"paid_over":            domain.PaymentStatusCompleted,
		"confirm_check":        domain.PaymentStatusProcessing,
		"check":                domain.PaymentStatusProcessing,
		"process":              domain.PaymentStatusProcessing,
		"wrong_amount_waiting": domain.PaymentStatusPending,
		"wrong_amount":         domain.PaymentStatusFailed,
		"cancel":               domain.PaymentStatusFailed,
		"fail":                 domain.PaymentStatusFailed,
		"system_fail":          domain.PaymentStatusFailed,
		"locked":               domain.PaymentStatusFailed,
		"refund_process":       domain.PaymentStatusProcessing,
		"refund_fail":          domain.PaymentStatusFailed,
		"refund_paid":          domain.PaymentStatusRefunded,
	},
}

var NowPayments = Table{
	Provider: domain.ProviderNowPayments,
	Fallback: domain.PaymentStatusUnknown,
	Tokens: map[string]domain.PaymentStatus{
		"waiting":        domain.PaymentStatusPending,
		"partially_paid": domain.PaymentStatusPending,
		"confirming":     domain.PaymentStatusProcessing,
		"confirmed":      domain.PaymentStatusProcessing,
		"sending":        domain.PaymentStatusProcessing,
		"finished":       domain.PaymentStatusCompleted,
		"failed":         domain.PaymentStatusFailed,
		"expired":        domain.PaymentStatusFailed,
		"refunded":       domain.PaymentStatusRefunded,
	},
}

var Stripe = Table{
	Provider: domain.ProviderStripe,
	Fallback: domain.PaymentStatusUnknown,
	Tokens: map[string]domain.PaymentStatus{
		"draft":                   domain.PaymentStatusPending,
		"open":                    domain.PaymentStatusPending,
		"requires_payment_method": domain.PaymentStatusPending,
		"requires_confirmation":   domain.PaymentStatusPending,
		"requires_action":         domain.PaymentStatusPending,
		"processing":              domain.PaymentStatusProcessing,
		"paid":                    domain.PaymentStatusCompleted,
		"succeeded":               domain.PaymentStatusCompleted,
		"void":                    domain.PaymentStatusFailed,
		"uncollectible":           domain.PaymentStatusFailed,
		"canceled":                domain.PaymentStatusFailed,
		"payment_failed":          domain.PaymentStatusFailed,
		"refunded":                domain.PaymentStatusRefunded,
		"partially_refunded":      domain.PaymentStatusPartiallyRefunded,
	},
}

var tables = map[domain.Provider]Table{
	domain.ProviderCoinGate:    CoinGate,
	domain.ProviderCryptomus:   Cryptomus,
	domain.ProviderNowPayments: NowPayments,
	domain.ProviderStripe:      Stripe,
}

// For returns the table of provider.
func For(provider domain.Provider) (Table, bool) {
	t, ok := tables[provider]
	return t, ok
}

// Map resolves token with provider's table. Unknown providers map to unknown.
func Map(provider domain.Provider, token string) domain.PaymentStatus {
	t, ok := tables[provider]
	if !ok {
		return domain.PaymentStatusUnknown
	}
	return t.Map(token)
}

var descriptions = map[domain.Provider]map[string]string{
	domain.ProviderCoinGate: {
		"new":                "Invoice created, but payment method not selected. Expires in 2 hours.",
		"pending":            "Payment method selected, awaiting payment. Expires in 20 minutes if unpaid.",
		"confirming":         "Payment sent, awaiting blockchain confirmation.",
		"paid":               "Payment confirmed and received. Goods/services can be delivered.",
		"invalid":            "Payment was not confirmed or failed compliance checks.",
		"expired":            "Invoice expired due to no payment or no method selected within time limits.",
		"canceled":           "Invoice was canceled by the shopper.",
		"refunded":           "Full refund issued to the shopper.",
		"partially_refunded": "Partial refund issued to the shopper.",
	},
	domain.ProviderNowPayments: {
		"waiting":    "waiting for paying",
		"confirming": "confirming checkout",
		"finished":   "payed successfully",
		"expired":    "checkout expired",
		"failed":     "checkout faild",
		"refunded":   "amount refunded",
	},
}

// Describe returns the provider's own wording for token, or UnknownDescription.
func Describe(provider domain.Provider, token string) string {
	if d, ok := descriptions[provider][normalize(token)]; ok {
		return d
	}
	return UnknownDescription
}

func normalize(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
