package adapters_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-checkout/adapters/gocommand"
	"github.com/goliatone/go-checkout/adapters/gojob"
	"github.com/goliatone/go-checkout/adapters/gologger"
	checkoutcommand "github.com/goliatone/go-checkout/command"
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	provider := &compatProvider{logger: compatLogger{}}
	_, _, jobProvider, jobLogger := gologger.ResolveForJob(gologger.RootLoggerName, provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueueProbe := &compatEnqueuer{}
	confirmation := core.OrderConfirmation{To: "a@b.com", OrderID: "o1", OrderDate: "3/14/2026"}
	if err := gojob.NewEnqueuerAdapter(enqueueProbe).Enqueue(ctx, core.NotificationRetryMessage(confirmation, "evt_1")); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.last == nil || enqueueProbe.last.JobID != gojob.JobIDNotificationRetry {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}
	if enqueueProbe.last.IdempotencyKey != "checkout.notification:o1:evt_1" {
		t.Fatalf("expected idempotency key to survive mapping, got %q", enqueueProbe.last.IdempotencyKey)
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(checkoutcommand.NewSendConfirmationCommand(compatNotifier{})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get(checkoutcommand.TypeSendConfirmation); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

func TestRuntimeCompatibility_ProcessWebhookThroughDispatcher(t *testing.T) {
	processor := &compatProcessor{}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())

	sub, err := gocommand.RegisterAndSubscribe(adapter, checkoutcommand.NewProcessWebhookCommand(processor))
	if err != nil {
		t.Fatalf("register process webhook command: %v", err)
	}
	defer sub.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	err = gocommand.Dispatch(context.Background(), checkoutcommand.ProcessWebhookMessage{
		Request: core.InboundRequest{
			ProviderID: "stripe",
			Headers:    map[string]string{"Stripe-Signature": "t=1,v1=abc"},
			Body:       []byte(`{"id":"evt_1"}`),
		},
	})
	if err != nil {
		t.Fatalf("dispatch process webhook: %v", err)
	}
	if processor.calls != 1 || processor.lastProvider != "stripe" {
		t.Fatalf("expected processor invocation through go-command dispatcher, got %+v", processor)
	}
}

type compatProcessor struct {
	calls        int
	lastProvider string
}

func (p *compatProcessor) Process(_ context.Context, req core.InboundRequest) (core.InboundResult, error) {
	p.calls++
	p.lastProvider = req.ProviderID
	return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
}

type compatNotifier struct{}

func (compatNotifier) SendOrderConfirmation(context.Context, core.OrderConfirmation) error {
	return nil
}

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
