package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-checkout/core"
	checkoutquery "github.com/goliatone/go-checkout/query"
	"github.com/goliatone/go-checkout/webhooks"
)

func TestNewFacade_RequiresProcessor(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for nil processor")
	}
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	processor := webhooks.NewProcessor(stubVerifier{}, webhooks.NewInMemoryDeliveryLedger(), stubDispatcher{})
	orders := &stubOrderReader{order: core.Order{ID: "order_1", UserID: "user_1"}}

	facade, err := NewFacade(processor,
		WithFacadeNotifier(stubNotifier{}),
		WithOrderReader(orders),
	)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	commands := facade.Commands()
	if commands.ProcessWebhook == nil || commands.SendConfirmation == nil {
		t.Fatalf("expected both commands wired, got %+v", commands)
	}
	queries := facade.Queries()
	if queries.GetOrder == nil {
		t.Fatalf("expected get order query")
	}
	if queries.ListOrders == nil {
		t.Fatalf("expected list orders resolved from the order reader")
	}
	if queries.ListWebhookDeliveries == nil {
		t.Fatalf("expected list deliveries resolved from the processor ledger")
	}
	if facade.Processor() != processor {
		t.Fatalf("expected facade to expose its processor")
	}

	order, err := queries.GetOrder.Query(context.Background(), checkoutquery.GetOrderMessage{OrderID: "order_1"})
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.UserID != "user_1" {
		t.Fatalf("unexpected order %+v", order)
	}
	listed, err := queries.ListOrders.Query(context.Background(), checkoutquery.ListOrdersMessage{UserID: "user_1"})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(listed) != 1 || orders.listUser != "user_1" {
		t.Fatalf("expected list to delegate to the reader, got %+v", listed)
	}
}

func TestNewFacade_LeavesUnresolvedQueriesNil(t *testing.T) {
	facade, err := NewFacade(processorFunc(func(context.Context, core.InboundRequest) (core.InboundResult, error) {
		return core.InboundResult{Accepted: true}, nil
	}))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().SendConfirmation != nil {
		t.Fatalf("expected no confirmation command without notifier")
	}
	queries := facade.Queries()
	if queries.GetOrder != nil || queries.ListOrders != nil || queries.ListWebhookDeliveries != nil {
		t.Fatalf("expected unresolved queries to stay nil, got %+v", queries)
	}
}

func TestNewFacade_ExplicitDeliveryListerWins(t *testing.T) {
	lister := &stubDeliveryLister{}
	processor := webhooks.NewProcessor(stubVerifier{}, webhooks.NewInMemoryDeliveryLedger(), stubDispatcher{})
	facade, err := NewFacade(processor, WithDeliveryLister(lister))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if _, err := facade.Queries().ListWebhookDeliveries.Query(
		context.Background(),
		checkoutquery.ListWebhookDeliveriesMessage{Status: webhooks.DeliveryStatusDead},
	); err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if lister.status != webhooks.DeliveryStatusDead {
		t.Fatalf("expected explicit lister to serve the query, got status %q", lister.status)
	}
}

type processorFunc func(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)

func (f processorFunc) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	return f(ctx, req)
}

type stubVerifier struct{}

func (stubVerifier) Verify(context.Context, core.InboundRequest) (core.InboundEvent, error) {
	return core.InboundEvent{ID: "evt_1", ProviderID: "stripe", Type: "charge.succeeded", Created: time.Now()}, nil
}

type stubDispatcher struct{}

func (stubDispatcher) Route(context.Context, core.InboundEvent) (core.InboundResult, error) {
	return core.InboundResult{Accepted: true, StatusCode: 200}, nil
}

type stubNotifier struct{}

func (stubNotifier) SendOrderConfirmation(context.Context, core.OrderConfirmation) error {
	return nil
}

type stubOrderReader struct {
	order    core.Order
	listUser string
}

func (r *stubOrderReader) Get(context.Context, string) (core.Order, error) {
	return r.order, nil
}

func (r *stubOrderReader) ListByUser(_ context.Context, userID string, _ int) ([]core.Order, error) {
	r.listUser = userID
	return []core.Order{r.order}, nil
}

type stubDeliveryLister struct {
	status string
}

func (l *stubDeliveryLister) ListByStatus(_ context.Context, status string, _ int) ([]webhooks.DeliveryRecord, error) {
	l.status = status
	return nil, nil
}

type stubHandler struct {
	eventType string
}

func (h stubHandler) EventType() string { return h.eventType }

func (h stubHandler) Handle(context.Context, core.InboundEvent) (core.InboundResult, error) {
	return core.InboundResult{Accepted: true, StatusCode: 200, Metadata: map[string]any{"outcome": h.eventType}}, nil
}
