package gateway

import (
	"github.com/erp/refundengine/internal/domain/shared"
)

// ErrGatewayNotRegistered is returned when no adapter is registered for a
// requested gateway type.
var ErrGatewayNotRegistered = shared.NewDomainError("GATEWAY_NOT_CONFIGURED", "no adapter registered for gateway type")

// Registry maps a gateway type string (e.g. "STRIPE", "WECHAT", "ALIPAY")
// to its Adapter, the C2 component.
type Registry interface {
	Register(adapter Adapter)
	Get(gatewayType string) (Adapter, error)
	List() []string
}

// InMemoryRegistry is the straightforward map-backed Registry
// implementation; adapters are registered once at startup.
type InMemoryRegistry struct {
	adapters map[string]Adapter
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces the adapter for its GatewayType().
func (r *InMemoryRegistry) Register(adapter Adapter) {
	r.adapters[adapter.GatewayType()] = adapter
}

// Get returns the adapter for gatewayType or ErrGatewayNotRegistered.
func (r *InMemoryRegistry) Get(gatewayType string) (Adapter, error) {
	a, ok := r.adapters[gatewayType]
	if !ok {
		return nil, ErrGatewayNotRegistered
	}
	return a, nil
}

// List returns the registered gateway type keys.
func (r *InMemoryRegistry) List() []string {
	keys := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		keys = append(keys, k)
	}
	return keys
}
