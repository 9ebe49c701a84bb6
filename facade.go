package checkout

import (
	"fmt"

	checkoutcommand "github.com/goliatone/go-checkout/command"
	"github.com/goliatone/go-checkout/core"
	checkoutquery "github.com/goliatone/go-checkout/query"
	"github.com/goliatone/go-checkout/webhooks"
)

type Commands struct {
	ProcessWebhook   *checkoutcommand.ProcessWebhookCommand
	SendConfirmation *checkoutcommand.SendConfirmationCommand
}

// Queries holds the read handlers. A query whose backing reader could not be
// resolved is left nil.
type Queries struct {
	GetOrder              *checkoutquery.GetOrderQuery
	ListOrders            *checkoutquery.ListOrdersQuery
	ListWebhookDeliveries *checkoutquery.ListWebhookDeliveriesQuery
}

type Facade struct {
	processor checkoutcommand.WebhookProcessor
	commands  Commands
	queries   Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	notifier       core.Notifier
	orderReader    core.OrderReader
	orderLister    checkoutquery.OrderLister
	deliveryLister checkoutquery.DeliveryLister
}

func WithFacadeNotifier(notifier core.Notifier) FacadeOption {
	return func(options *facadeOptions) {
		options.notifier = notifier
	}
}

func WithOrderReader(reader core.OrderReader) FacadeOption {
	return func(options *facadeOptions) {
		options.orderReader = reader
	}
}

func WithOrderLister(lister checkoutquery.OrderLister) FacadeOption {
	return func(options *facadeOptions) {
		options.orderLister = lister
	}
}

func WithDeliveryLister(lister checkoutquery.DeliveryLister) FacadeOption {
	return func(options *facadeOptions) {
		options.deliveryLister = lister
	}
}

// NewFacade wires the checkout commands and queries around processor. When no
// delivery lister is given and processor is a *webhooks.Processor, its ledger
// is used if it can list deliveries.
func NewFacade(processor checkoutcommand.WebhookProcessor, opts ...FacadeOption) (*Facade, error) {
	if processor == nil {
		return nil, fmt.Errorf("checkout: webhook processor is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	orderLister := cfg.orderLister
	if orderLister == nil {
		if lister, ok := cfg.orderReader.(checkoutquery.OrderLister); ok {
			orderLister = lister
		}
	}
	deliveryLister := cfg.deliveryLister
	if deliveryLister == nil {
		deliveryLister = resolveDeliveryLister(processor)
	}

	facade := &Facade{processor: processor}
	facade.commands = Commands{
		ProcessWebhook: checkoutcommand.NewProcessWebhookCommand(processor),
	}
	if cfg.notifier != nil {
		facade.commands.SendConfirmation = checkoutcommand.NewSendConfirmationCommand(cfg.notifier)
	}
	if cfg.orderReader != nil {
		facade.queries.GetOrder = checkoutquery.NewGetOrderQuery(cfg.orderReader)
	}
	if orderLister != nil {
		facade.queries.ListOrders = checkoutquery.NewListOrdersQuery(orderLister)
	}
	if deliveryLister != nil {
		facade.queries.ListWebhookDeliveries = checkoutquery.NewListWebhookDeliveriesQuery(deliveryLister)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Processor() checkoutcommand.WebhookProcessor {
	if f == nil {
		return nil
	}
	return f.processor
}

func resolveDeliveryLister(processor checkoutcommand.WebhookProcessor) checkoutquery.DeliveryLister {
	if lister, ok := processor.(checkoutquery.DeliveryLister); ok {
		return lister
	}
	concrete, ok := processor.(*webhooks.Processor)
	if !ok || concrete == nil || concrete.Ledger == nil {
		return nil
	}
	lister, _ := concrete.Ledger.(checkoutquery.DeliveryLister)
	return lister
}
