package checkout

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-checkout/core"
)

// HandlerPack is a named set of event handlers a downstream application adds
// next to the built-in checkout.session.completed handler.
type HandlerPack struct {
	Name     string
	Handlers []core.EventHandler
}

type BundleFactory func(facade *Facade) (any, error)

// HandlerRegistrar is satisfied by inbound.Router.
type HandlerRegistrar interface {
	Register(handler core.EventHandler) error
}

type ExtensionHooks struct {
	mu sync.RWMutex

	handlerPacks map[string]HandlerPack
	bundles      map[string]BundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		handlerPacks: map[string]HandlerPack{},
		bundles:      map[string]BundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterHandlerPack(pack HandlerPack) error {
	if h == nil {
		return fmt.Errorf("checkout: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("checkout: handler pack name is required")
	}
	if len(pack.Handlers) == 0 {
		return fmt.Errorf("checkout: handler pack %q has no handlers", name)
	}
	for _, handler := range pack.Handlers {
		if handler == nil {
			return fmt.Errorf("checkout: handler pack %q contains nil handler", name)
		}
	}

	normalized := HandlerPack{
		Name:     name,
		Handlers: append([]core.EventHandler(nil), pack.Handlers...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.handlerPacks[name]; exists {
		return fmt.Errorf("checkout: handler pack %q already registered", name)
	}
	h.handlerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterBundle(name string, factory BundleFactory) error {
	if h == nil {
		return fmt.Errorf("checkout: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("checkout: bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("checkout: bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("checkout: bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyHandlerPacks registers every pack's handlers in pack name order. The
// registrar rejects a second handler for an event type it already routes.
func (h *ExtensionHooks) ApplyHandlerPacks(registrar HandlerRegistrar) error {
	if h == nil {
		return nil
	}
	if registrar == nil {
		return fmt.Errorf("checkout: handler registrar is required")
	}
	for _, pack := range h.HandlerPacks() {
		for _, handler := range pack.Handlers {
			if err := registrar.Register(handler); err != nil {
				return fmt.Errorf("checkout: handler pack %q: %w", pack.Name, err)
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("checkout: facade is required")
	}

	h.mu.RLock()
	factories := make(map[string]BundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(factories))
	for _, name := range sortedKeys(factories) {
		bundle, err := factories[name](facade)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) HandlerPacks() []HandlerPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HandlerPack, 0, len(h.handlerPacks))
	for _, name := range sortedKeys(h.handlerPacks) {
		pack := h.handlerPacks[name]
		out = append(out, HandlerPack{
			Name:     pack.Name,
			Handlers: append([]core.EventHandler(nil), pack.Handlers...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](values map[string]V) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
