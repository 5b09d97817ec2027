package lending

import (
	"fmt"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// ProviderRegistry resolves (provider, chain) pairs to registered adapters.
// It is constructed once at startup and never mutated; there is no runtime
// registration and no process-wide singleton.
type ProviderRegistry struct {
	providers map[string]ports.LendingProvider
}

// NewProviderRegistry builds an immutable registry from the given providers
func NewProviderRegistry(providers ...ports.LendingProvider) (*ProviderRegistry, error) {
	m := make(map[string]ports.LendingProvider, len(providers))
	for _, p := range providers {
		name := p.Name()
		if _, exists := m[name]; exists {
			return nil, fmt.Errorf("provider %q is already registered", name)
		}
		m[name] = p
	}
	return &ProviderRegistry{providers: m}, nil
}

// Resolve returns the adapter for a (provider, chain) pair. Unsupported
// combinations fail fast with a non-transient PROVIDER_UNAVAILABLE error
// rather than falling through to a default.
func (r *ProviderRegistry) Resolve(provider, chain string) (ports.LendingProvider, *domain.NodeError) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, &domain.NodeError{
			Code:    domain.CodeProviderUnavailable,
			Message: fmt.Sprintf("provider %q is not registered", provider),
			Details: map[string]interface{}{"provider": provider, "chain": chain},
		}
	}
	if !p.SupportsChain(chain) {
		return nil, &domain.NodeError{
			Code:    domain.CodeProviderUnavailable,
			Message: fmt.Sprintf("provider %q does not support chain %q", provider, chain),
			Details: map[string]interface{}{"provider": provider, "chain": chain},
		}
	}
	return p, nil
}

// Names returns the registered provider identifiers
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
