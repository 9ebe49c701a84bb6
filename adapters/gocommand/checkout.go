package gocommand

import (
	"fmt"

	checkoutcommand "github.com/goliatone/go-checkout/command"
	checkoutquery "github.com/goliatone/go-checkout/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// CheckoutHandlers groups the checkout commanders and queriers. Nil entries
// are skipped.
type CheckoutHandlers struct {
	ProcessWebhook        *checkoutcommand.ProcessWebhookCommand
	SendConfirmation      *checkoutcommand.SendConfirmationCommand
	GetOrder              *checkoutquery.GetOrderQuery
	ListOrders            *checkoutquery.ListOrdersQuery
	ListWebhookDeliveries *checkoutquery.ListWebhookDeliveriesQuery
}

// RegisterCheckoutHandlers registers and subscribes every configured handler.
// On failure all subscriptions made so far are released.
func RegisterCheckoutHandlers(
	adapter *RegistryAdapter,
	handlers CheckoutHandlers,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	var subscriptions []commanddispatcher.Subscription
	track := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			Unsubscribe(subscriptions)
			return err
		}
		subscriptions = append(subscriptions, sub)
		return nil
	}

	if handlers.ProcessWebhook != nil {
		if err := track(RegisterAndSubscribe(adapter, handlers.ProcessWebhook, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.SendConfirmation != nil {
		if err := track(RegisterAndSubscribe(adapter, handlers.SendConfirmation, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.GetOrder != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, handlers.GetOrder, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ListOrders != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, handlers.ListOrders, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ListWebhookDeliveries != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, handlers.ListWebhookDeliveries, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return subscriptions, nil
}

func Unsubscribe(subscriptions []commanddispatcher.Subscription) {
	for _, sub := range subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}
