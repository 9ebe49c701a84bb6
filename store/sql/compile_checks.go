package sqlstore

import (
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/webhooks"
)

var (
	_ core.OrderStore         = (*OrderStore)(nil)
	_ core.OrderReader        = (*CachedOrderReader)(nil)
	_ OrderRepository         = (*OrderStore)(nil)
	_ OrderRepository         = (*CachedOrderReader)(nil)
	_ webhooks.DeliveryLedger = (*WebhookEventStore)(nil)
)
