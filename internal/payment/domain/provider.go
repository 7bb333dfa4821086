package domain

import (
	"strings"
)

// Provider identifies a payment gateway. It selects the signature scheme,
// the header syntax and the status vocabulary used for that gateway.
type Provider string

const (
	ProviderStripe      Provider = "stripe"
	ProviderCryptomus   Provider = "cryptomus"
	ProviderCoinGate    Provider = "coingate"
	ProviderNowPayments Provider = "nowpayments"
)

var providers = []Provider{
	ProviderStripe,
	ProviderCryptomus,
	ProviderCoinGate,
	ProviderNowPayments,
}

func Providers() []Provider {
	out := make([]Provider, len(providers))
	copy(out, providers)
	return out
}

// ParseProvider normalizes raw and reports whether it names a known provider.
func ParseProvider(raw string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range providers {
		if p == known {
			return p, true
		}
	}
	return "", false
}

func (p Provider) String() string { return string(p) }

// PaymentStatus is the internal payment state every provider status is reconciled to.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusUnknown           PaymentStatus = "unknown"
)

// IsTerminal reports whether no further non-refund transition is expected.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) IsRefund() bool {
	return s == PaymentStatusRefunded || s == PaymentStatusPartiallyRefunded
}
