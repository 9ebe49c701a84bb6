package inbound

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-checkout/core"
)

type Router struct {
	mu       sync.RWMutex
	handlers map[string]core.EventHandler
}

func NewRouter(handlers ...core.EventHandler) (*Router, error) {
	router := &Router{handlers: map[string]core.EventHandler{}}
	for _, handler := range handlers {
		if err := router.Register(handler); err != nil {
			return nil, err
		}
	}
	return router, nil
}

func (r *Router) Register(handler core.EventHandler) error {
	if r == nil {
		return inboundInternal("inbound: router is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	eventType := normalizeEventType(handler.EventType())
	if eventType == "" {
		return inboundBadInput("inbound: handler event type is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = map[string]core.EventHandler{}
	}
	if _, exists := r.handlers[eventType]; exists {
		return core.ConflictError(
			fmt.Sprintf("inbound: handler already registered for event type %q", eventType),
			map[string]any{"event_type": eventType},
		)
	}
	r.handlers[eventType] = handler
	return nil
}

// Route hands event to its registered handler. Events without a handler are
// accepted and ignored.
func (r *Router) Route(ctx context.Context, event core.InboundEvent) (core.InboundResult, error) {
	if r == nil {
		return core.InboundResult{}, inboundInternal("inbound: router is nil", nil)
	}
	eventType := normalizeEventType(event.Type)
	handler := r.handlerFor(eventType)
	if handler == nil {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"event_type": eventType,
				"ignored":    true,
			},
		}, nil
	}

	result, err := handler.Handle(ctx, event)
	if err != nil {
		return core.InboundResult{}, handlerFailure(err, eventType)
	}
	if result.StatusCode == 0 {
		result.StatusCode = http.StatusOK
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["event_type"] = eventType
	return result, nil
}

func (r *Router) EventTypes() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for eventType := range r.handlers {
		out = append(out, eventType)
	}
	sort.Strings(out)
	return out
}

func (r *Router) handlerFor(eventType string) core.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[eventType]
}

func normalizeEventType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}
