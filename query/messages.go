package query

import (
	"strings"

	"github.com/goliatone/go-checkout/webhooks"
)

const (
	TypeGetOrder            = "checkout.query.order.get"
	TypeListOrders          = "checkout.query.order.list"
	TypeListWebhookDelivery = "checkout.query.webhook_delivery.list"

	maxListLimit = 200
)

type GetOrderMessage struct {
	OrderID string
}

func (GetOrderMessage) Type() string { return TypeGetOrder }

func (m GetOrderMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return errInvalidField("order_id", "order id is required")
	}
	return nil
}

type ListOrdersMessage struct {
	UserID string
	Limit  int
}

func (ListOrdersMessage) Type() string { return TypeListOrders }

func (m ListOrdersMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return errInvalidField("user_id", "user id is required")
	}
	if m.Limit < 0 || m.Limit > maxListLimit {
		return errInvalidField("limit", "limit must be between 0 and 200")
	}
	return nil
}

type ListWebhookDeliveriesMessage struct {
	Status string
	Limit  int
}

func (ListWebhookDeliveriesMessage) Type() string { return TypeListWebhookDelivery }

func (m ListWebhookDeliveriesMessage) Validate() error {
	switch strings.TrimSpace(m.Status) {
	case webhooks.DeliveryStatusProcessing,
		webhooks.DeliveryStatusProcessed,
		webhooks.DeliveryStatusRetryReady,
		webhooks.DeliveryStatusDead:
	default:
		return errInvalidField("status", "unknown delivery status")
	}
	if m.Limit < 0 || m.Limit > maxListLimit {
		return errInvalidField("limit", "limit must be between 0 and 200")
	}
	return nil
}
