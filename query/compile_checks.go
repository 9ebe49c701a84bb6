package query

import (
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/webhooks"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetOrderMessage, core.Order]                             = (*GetOrderQuery)(nil)
	_ gocmd.Querier[ListOrdersMessage, []core.Order]                         = (*ListOrdersQuery)(nil)
	_ gocmd.Querier[ListWebhookDeliveriesMessage, []webhooks.DeliveryRecord] = (*ListWebhookDeliveriesQuery)(nil)
)
