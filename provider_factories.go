package checkout

import (
	"fmt"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/inbound"
	"github.com/goliatone/go-checkout/providers/stripe"
	"github.com/goliatone/go-checkout/webhooks"
)

func StripeVerifier(cfg Config) core.EventVerifier {
	return stripe.NewWebhookVerifier(stripe.WebhookConfigFrom(cfg.Stripe))
}

// NewStripeProcessor builds a processor that verifies Stripe deliveries,
// claims them in ledger and routes them to handlers plus any hook packs. A
// nil ledger dispatches every delivery.
func NewStripeProcessor(
	cfg Config,
	ledger webhooks.DeliveryLedger,
	hooks *ExtensionHooks,
	handlers ...core.EventHandler,
) (*webhooks.Processor, error) {
	if len(handlers) == 0 && len(hooks.HandlerPacks()) == 0 {
		return nil, fmt.Errorf("checkout: at least one event handler is required")
	}
	router, err := inbound.NewRouter(handlers...)
	if err != nil {
		return nil, err
	}
	if err := hooks.ApplyHandlerPacks(router); err != nil {
		return nil, err
	}
	return webhooks.NewProcessor(StripeVerifier(cfg), ledger, router), nil
}
