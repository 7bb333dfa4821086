package adapters

import (
	"fmt"
	"sort"

	"github.com/railzwaylabs/paygate/internal/payment/domain"
)

// Registry resolves a provider to the factory that builds its adapters.
type Registry struct {
	factories map[domain.Provider]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[domain.Provider]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		if f == nil {
			continue
		}
		r.factories[f.Provider()] = f
	}
	return r
}

func (r *Registry) ProviderExists(provider domain.Provider) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[provider]
	return ok
}

func (r *Registry) NewAdapter(provider domain.Provider, cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	if !r.ProviderExists(provider) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, provider)
	}
	if cfg.Provider == "" {
		cfg.Provider = provider
	}
	return r.factories[provider].NewAdapter(cfg)
}

// Providers lists registered providers in name order.
func (r *Registry) Providers() []domain.Provider {
	if r == nil {
		return nil
	}
	out := make([]domain.Provider, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
