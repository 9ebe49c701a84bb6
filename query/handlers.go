package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/webhooks"
)

type OrderLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]core.Order, error)
}

type DeliveryLister interface {
	ListByStatus(ctx context.Context, status string, limit int) ([]webhooks.DeliveryRecord, error)
}

type GetOrderQuery struct {
	reader core.OrderReader
}

func NewGetOrderQuery(reader core.OrderReader) *GetOrderQuery {
	return &GetOrderQuery{reader: reader}
}

func (q *GetOrderQuery) Query(ctx context.Context, msg GetOrderMessage) (core.Order, error) {
	if q == nil || q.reader == nil {
		return core.Order{}, errMissingDependency("order reader")
	}
	if err := msg.Validate(); err != nil {
		return core.Order{}, err
	}
	return q.reader.Get(ctx, strings.TrimSpace(msg.OrderID))
}

type ListOrdersQuery struct {
	lister OrderLister
}

func NewListOrdersQuery(lister OrderLister) *ListOrdersQuery {
	return &ListOrdersQuery{lister: lister}
}

func (q *ListOrdersQuery) Query(ctx context.Context, msg ListOrdersMessage) ([]core.Order, error) {
	if q == nil || q.lister == nil {
		return nil, errMissingDependency("order lister")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.lister.ListByUser(ctx, strings.TrimSpace(msg.UserID), msg.Limit)
}

// ListWebhookDeliveriesQuery lists ledger rows by status, mainly to find
// dead deliveries that need an operator.
type ListWebhookDeliveriesQuery struct {
	lister DeliveryLister
}

func NewListWebhookDeliveriesQuery(lister DeliveryLister) *ListWebhookDeliveriesQuery {
	return &ListWebhookDeliveriesQuery{lister: lister}
}

func (q *ListWebhookDeliveriesQuery) Query(
	ctx context.Context,
	msg ListWebhookDeliveriesMessage,
) ([]webhooks.DeliveryRecord, error) {
	if q == nil || q.lister == nil {
		return nil, errMissingDependency("delivery lister")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.lister.ListByStatus(ctx, strings.TrimSpace(msg.Status), msg.Limit)
}
