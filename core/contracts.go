package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type InboundRequest struct {
	ProviderID string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

// EventVerifier authenticates a raw provider request and returns the typed
// event it carries. Implementations must not parse business fields.
type EventVerifier interface {
	Verify(ctx context.Context, req InboundRequest) (InboundEvent, error)
}

type EventHandler interface {
	EventType() string
	Handle(ctx context.Context, event InboundEvent) (InboundResult, error)
}

// OrderStore applies the paid transition and address creation as a single
// atomic unit.
type OrderStore interface {
	UpdateOrderOnPayment(ctx context.Context, update PaymentUpdate) (PaymentOutcome, error)
}

// ConfirmationRecorder is implemented by order stores that remember when the
// confirmation email was delivered. A paid order without that mark gets its
// confirmation resent when the provider redelivers the event.
type ConfirmationRecorder interface {
	MarkConfirmationSent(ctx context.Context, orderID string, sentAt time.Time) error
}

type OrderReader interface {
	Get(ctx context.Context, orderID string) (Order, error)
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, confirmation OrderConfirmation) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// JobWorkerHook observes background job lifecycle transitions.
type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
