package gocommand

import (
	"context"
	"net/http"
	"testing"

	checkoutcommand "github.com/goliatone/go-checkout/command"
	"github.com/goliatone/go-checkout/core"
	checkoutquery "github.com/goliatone/go-checkout/query"
	"github.com/goliatone/go-command"
)

func TestRegisterCheckoutHandlers_DispatchAndQuery(t *testing.T) {
	processor := &countingProcessor{}
	reader := staticOrderReader{order: core.Order{ID: "o1", UserID: "u1", IsPaid: true}}

	adapter := NewRegistryAdapter(command.NewRegistry())
	subscriptions, err := RegisterCheckoutHandlers(adapter, CheckoutHandlers{
		ProcessWebhook: checkoutcommand.NewProcessWebhookCommand(processor),
		GetOrder:       checkoutquery.NewGetOrderQuery(reader),
	})
	if err != nil {
		t.Fatalf("register checkout handlers: %v", err)
	}
	t.Cleanup(func() { Unsubscribe(subscriptions) })
	if len(subscriptions) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subscriptions))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), checkoutcommand.ProcessWebhookMessage{
		Request: core.InboundRequest{ProviderID: "stripe", Body: []byte(`{}`)},
	}); err != nil {
		t.Fatalf("dispatch process webhook: %v", err)
	}
	if processor.calls != 1 {
		t.Fatalf("expected processor to run once, got %d", processor.calls)
	}

	order, err := Query[checkoutquery.GetOrderMessage, core.Order](context.Background(), checkoutquery.GetOrderMessage{OrderID: "o1"})
	if err != nil {
		t.Fatalf("query order: %v", err)
	}
	if order.ID != "o1" || !order.IsPaid {
		t.Fatalf("unexpected order %#v", order)
	}
}

func TestRegisterCheckoutHandlers_RequiresRegistry(t *testing.T) {
	if _, err := RegisterCheckoutHandlers(nil, CheckoutHandlers{}); err == nil {
		t.Fatalf("expected error for missing registry")
	}
	subscriptions, err := RegisterCheckoutHandlers(NewRegistryAdapter(nil), CheckoutHandlers{})
	if err != nil {
		t.Fatalf("expected empty handler set to register cleanly, got %v", err)
	}
	if len(subscriptions) != 0 {
		t.Fatalf("expected no subscriptions, got %d", len(subscriptions))
	}
}

type countingProcessor struct {
	calls int
}

func (p *countingProcessor) Process(context.Context, core.InboundRequest) (core.InboundResult, error) {
	p.calls++
	return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
}

type staticOrderReader struct {
	order core.Order
}

func (r staticOrderReader) Get(context.Context, string) (core.Order, error) {
	return r.order, nil
}
