package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/webhooks"
	goerrors "github.com/goliatone/go-errors"
)

func TestGetOrderQuery_QueryDelegates(t *testing.T) {
	called := false
	reader := stubOrderReader{getFn: func(_ context.Context, orderID string) (core.Order, error) {
		called = true
		if orderID != "o1" {
			t.Fatalf("unexpected order id %q", orderID)
		}
		return core.Order{ID: "o1", UserID: "u1", IsPaid: true}, nil
	}}

	order, err := NewGetOrderQuery(reader).Query(context.Background(), GetOrderMessage{OrderID: " o1 "})
	if err != nil {
		t.Fatalf("query order: %v", err)
	}
	if !called {
		t.Fatalf("expected order reader invocation")
	}
	if order.Status() != core.OrderStatusPaid {
		t.Fatalf("expected paid order, got %#v", order)
	}
}

func TestGetOrderQuery_PropagatesNotFound(t *testing.T) {
	reader := stubOrderReader{getFn: func(context.Context, string) (core.Order, error) {
		return core.Order{}, core.OrderNotFoundError("o404", nil)
	}}
	_, err := NewGetOrderQuery(reader).Query(context.Background(), GetOrderMessage{OrderID: "o404"})
	if !core.IsOrderNotFound(err) {
		t.Fatalf("expected order not found, got %v", err)
	}
}

func TestGetOrderQuery_ValidatesOrderID(t *testing.T) {
	reader := stubOrderReader{getFn: func(context.Context, string) (core.Order, error) {
		t.Fatalf("reader should not run for invalid message")
		return core.Order{}, nil
	}}
	_, err := NewGetOrderQuery(reader).Query(context.Background(), GetOrderMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.ErrorBadInput {
		t.Fatalf("unexpected validation envelope %q %q", rich.Category, rich.TextCode)
	}
}

func TestListOrdersQuery_QueryDelegates(t *testing.T) {
	lister := stubOrderLister{listFn: func(_ context.Context, userID string, limit int) ([]core.Order, error) {
		if userID != "u1" || limit != 10 {
			t.Fatalf("unexpected list request %q %d", userID, limit)
		}
		return []core.Order{{ID: "o2", UserID: "u1"}, {ID: "o1", UserID: "u1"}}, nil
	}}
	orders, err := NewListOrdersQuery(lister).Query(context.Background(), ListOrdersMessage{UserID: "u1", Limit: 10})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "o2" {
		t.Fatalf("unexpected orders %#v", orders)
	}
}

func TestListOrdersMessage_Validate(t *testing.T) {
	tests := []struct {
		name string
		msg  ListOrdersMessage
		ok   bool
	}{
		{name: "valid", msg: ListOrdersMessage{UserID: "u1", Limit: 20}, ok: true},
		{name: "default limit", msg: ListOrdersMessage{UserID: "u1"}, ok: true},
		{name: "missing user", msg: ListOrdersMessage{Limit: 20}},
		{name: "negative limit", msg: ListOrdersMessage{UserID: "u1", Limit: -1}},
		{name: "limit too large", msg: ListOrdersMessage{UserID: "u1", Limit: 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("expected valid message, got %v", err)
			}
			if !tt.ok && !core.HasTextCode(err, core.ErrorBadInput) {
				t.Fatalf("expected bad input, got %v", err)
			}
		})
	}
}

func TestListWebhookDeliveriesQuery_QueryDelegates(t *testing.T) {
	lister := stubDeliveryLister{listFn: func(_ context.Context, status string, limit int) ([]webhooks.DeliveryRecord, error) {
		if status != webhooks.DeliveryStatusDead || limit != 5 {
			t.Fatalf("unexpected list request %q %d", status, limit)
		}
		return []webhooks.DeliveryRecord{{EventID: "evt_1", Status: webhooks.DeliveryStatusDead}}, nil
	}}
	records, err := NewListWebhookDeliveriesQuery(lister).Query(context.Background(), ListWebhookDeliveriesMessage{
		Status: webhooks.DeliveryStatusDead,
		Limit:  5,
	})
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(records) != 1 || records[0].EventID != "evt_1" {
		t.Fatalf("unexpected records %#v", records)
	}

	if _, err := NewListWebhookDeliveriesQuery(lister).Query(context.Background(), ListWebhookDeliveriesMessage{Status: "lost"}); !core.HasTextCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for unknown status, got %v", err)
	}
}

func TestQueries_NilDependenciesReturnRichError(t *testing.T) {
	var getOrder *GetOrderQuery
	if _, err := getOrder.Query(context.Background(), GetOrderMessage{OrderID: "o1"}); !core.HasTextCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if _, err := NewListOrdersQuery(nil).Query(context.Background(), ListOrdersMessage{UserID: "u1"}); !core.HasTextCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

type stubOrderReader struct {
	getFn func(ctx context.Context, orderID string) (core.Order, error)
}

func (s stubOrderReader) Get(ctx context.Context, orderID string) (core.Order, error) {
	return s.getFn(ctx, orderID)
}

type stubOrderLister struct {
	listFn func(ctx context.Context, userID string, limit int) ([]core.Order, error)
}

func (s stubOrderLister) ListByUser(ctx context.Context, userID string, limit int) ([]core.Order, error) {
	return s.listFn(ctx, userID, limit)
}

type stubDeliveryLister struct {
	listFn func(ctx context.Context, status string, limit int) ([]webhooks.DeliveryRecord, error)
}

func (s stubDeliveryLister) ListByStatus(ctx context.Context, status string, limit int) ([]webhooks.DeliveryRecord, error) {
	return s.listFn(ctx, status, limit)
}
