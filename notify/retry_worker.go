package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-checkout/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultRetryMaxAttempts = 5
	defaultRetryBaseDelay   = 30 * time.Second
	defaultRetryMaxDelay    = 30 * time.Minute
)

// RetryWorker drains notification retry jobs and resends confirmations.
type RetryWorker struct {
	Dequeuer    core.JobDequeuer
	Notifier    core.Notifier
	Hook        core.JobWorkerHook
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Now         func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewRetryWorker(dequeuer core.JobDequeuer, notifier core.Notifier, hook core.JobWorkerHook) *RetryWorker {
	return &RetryWorker{
		Dequeuer:    dequeuer,
		Notifier:    notifier,
		Hook:        hook,
		MaxAttempts: defaultRetryMaxAttempts,
		BaseDelay:   defaultRetryBaseDelay,
		MaxDelay:    defaultRetryMaxDelay,
		Now:         time.Now,
		attempts:    map[string]int{},
	}
}

// Run processes jobs until ctx is cancelled.
func (w *RetryWorker) Run(ctx context.Context) error {
	for {
		if err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// RunOnce dequeues one job and settles it. Send failures are nacked, not
// returned.
func (w *RetryWorker) RunOnce(ctx context.Context) error {
	if w == nil || w.Dequeuer == nil || w.Notifier == nil {
		return core.InternalError("notify: retry worker is not configured", nil)
	}
	delivery, err := w.Dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	startedAt := w.now()
	attempt := w.nextAttempt(msg)
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt}
	w.hook().OnStart(ctx, event)

	if msg == nil || strings.TrimSpace(msg.JobID) != core.NotificationRetryJobID {
		event.Err = core.BadInputError("notify: unsupported job", map[string]any{"job_id": jobID(msg)})
		return w.deadLetter(ctx, delivery, event)
	}
	confirmation, err := core.ConfirmationFromParameters(msg.Parameters)
	if err != nil {
		event.Err = err
		return w.deadLetter(ctx, delivery, event)
	}

	sendErr := w.Notifier.SendOrderConfirmation(ctx, confirmation)
	event.Duration = w.now().Sub(startedAt)
	if sendErr == nil {
		w.forget(msg)
		if err := delivery.Ack(ctx); err != nil {
			return err
		}
		w.hook().OnSuccess(ctx, event)
		return nil
	}

	event.Err = sendErr
	if w.maxAttempts() > 0 && attempt >= w.maxAttempts() {
		return w.deadLetter(ctx, delivery, event)
	}
	event.Delay = w.backoff(attempt)
	if err := delivery.Nack(ctx, core.JobNackOptions{
		Delay:   event.Delay,
		Requeue: true,
		Reason:  sendErr.Error(),
	}); err != nil {
		return err
	}
	w.hook().OnRetry(ctx, event)
	return nil
}

func (w *RetryWorker) deadLetter(ctx context.Context, delivery core.JobDelivery, event core.JobWorkerEvent) error {
	w.forget(event.Message)
	reason := ""
	if event.Err != nil {
		reason = event.Err.Error()
	}
	if err := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: reason}); err != nil {
		return err
	}
	w.hook().OnFailure(ctx, event)
	return nil
}

func (w *RetryWorker) backoff(attempt int) time.Duration {
	base := w.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	limit := w.MaxDelay
	if limit <= 0 {
		limit = defaultRetryMaxDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	return delay
}

func (w *RetryWorker) nextAttempt(msg *core.JobExecutionMessage) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attempts == nil {
		w.attempts = map[string]int{}
	}
	key := attemptKey(msg)
	w.attempts[key]++
	return w.attempts[key]
}

func (w *RetryWorker) forget(msg *core.JobExecutionMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, attemptKey(msg))
}

func (w *RetryWorker) maxAttempts() int {
	if w.MaxAttempts > 0 {
		return w.MaxAttempts
	}
	return defaultRetryMaxAttempts
}

func (w *RetryWorker) hook() core.JobWorkerHook {
	if w.Hook != nil {
		return w.Hook
	}
	return noopHook{}
}

func (w *RetryWorker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

func jobID(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return msg.JobID
}

type noopHook struct{}

func (noopHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (noopHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (noopHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (noopHook) OnRetry(context.Context, core.JobWorkerEvent)   {}

// ObservingHook reports retry job transitions through the shared logger and
// metrics recorder.
type ObservingHook struct {
	Logger          core.Logger
	MetricsRecorder core.MetricsRecorder
}

func NewObservingHook(logger core.Logger, recorder core.MetricsRecorder) ObservingHook {
	if recorder == nil {
		recorder = core.NopMetricsRecorder{}
	}
	return ObservingHook{Logger: glog.Ensure(logger), MetricsRecorder: recorder}
}

func (h ObservingHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	core.LogWithFields(ctx, h.logger(), "debug", "notification retry started", jobFields(event))
}

func (h ObservingHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.observe(ctx, event, "sent", nil)
}

func (h ObservingHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	err := event.Err
	if err == nil {
		err = errors.New("notify: retry job failed")
	}
	h.observe(ctx, event, "dead_letter", err)
}

func (h ObservingHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	fields := jobFields(event)
	fields["delay_ms"] = event.Delay.Milliseconds()
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	core.LogWithFields(ctx, h.logger(), "warn", "notification retry rescheduled", fields)
	h.recorder().IncCounter(ctx, "checkout.notification_retry.total", 1, map[string]string{
		"operation": "notification_retry",
		"status":    "retry",
	})
}

func (h ObservingHook) observe(ctx context.Context, event core.JobWorkerEvent, outcome string, err error) {
	fields := jobFields(event)
	fields["outcome"] = outcome
	core.ObserveOperation(ctx, h.logger(), h.recorder(), event.StartedAt, "notification_retry", err, fields)
}

func (h ObservingHook) logger() core.Logger {
	return glog.Ensure(h.Logger)
}

func (h ObservingHook) recorder() core.MetricsRecorder {
	if h.MetricsRecorder != nil {
		return h.MetricsRecorder
	}
	return core.NopMetricsRecorder{}
}

func jobFields(event core.JobWorkerEvent) map[string]any {
	fields := map[string]any{"attempt": event.Attempt}
	if event.Message != nil {
		fields["job_id"] = event.Message.JobID
		fields["idempotency_key"] = event.Message.IdempotencyKey
		if orderID, ok := event.Message.Parameters["order_id"]; ok {
			fields["order_id"] = orderID
		}
	}
	return fields
}

var (
	_ core.JobWorkerHook = ObservingHook{}
	_ core.JobWorkerHook = noopHook{}
)
