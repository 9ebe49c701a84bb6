package gojob

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-checkout/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const JobIDNotificationRetry = core.NotificationRetryJobID

// RetryPolicy bounds how a nack is forwarded to the go-job queue.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NotificationRetryPolicy bounds confirmation redelivery on a go-job queue:
// five attempts, at most thirty minutes apart, then dead letter.
func NotificationRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		MaxDelay:        30 * time.Minute,
		DeadLetterOnMax: true,
	}
}

// NormalizeAttempt clamps the delay and turns a requeue into a dead letter
// once attempt reaches MaxAttempts. A nack that neither requeues nor dead
// letters is treated as a requeue.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	out.Delay = max(out.Delay, 0)
	if p.MaxDelay > 0 {
		out.Delay = min(out.Delay, p.MaxDelay)
	}
	exhausted := p.MaxAttempts > 0 && attempt >= p.MaxAttempts
	switch {
	case out.DeadLetter:
		out.Requeue = false
	case exhausted && p.DeadLetterOnMax:
		out.Requeue = false
		out.DeadLetter = true
	default:
		out.Requeue = true
	}
	return out
}

func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// EnqueuerAdapter publishes checkout jobs to a go-job queue. Only
// notification retries are accepted, and their confirmation payload must
// decode before it is queued.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return core.InternalError("gojob: enqueuer is not configured", nil)
	}
	if msg == nil {
		return core.BadInputError("gojob: execution message is required", nil)
	}
	jobID := strings.TrimSpace(msg.JobID)
	switch jobID {
	case "":
		return core.BadInputError("gojob: job id is required", nil)
	case JobIDNotificationRetry:
		if _, err := core.ConfirmationFromParameters(msg.Parameters); err != nil {
			return err
		}
	default:
		return core.BadInputError("gojob: unsupported job id", map[string]any{"job_id": jobID})
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

// DeliveryAdapter wraps one go-job delivery. attempt is the 1-based
// delivery count seen by the dequeuer that produced it, or zero when
// unknown.
type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
	attempt  int
	settle   func()
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return core.InternalError("gojob: delivery is not configured", nil)
	}
	if err := d.delivery.Ack(ctx); err != nil {
		return err
	}
	d.release()
	return nil
}

// Nack applies the policy using the attempt count tracked by the dequeuer.
func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if d == nil {
		return core.InternalError("gojob: delivery is not configured", nil)
	}
	return d.NackForAttempt(ctx, opts, d.attempt)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return core.InternalError("gojob: delivery is not configured", nil)
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	if err := d.delivery.Nack(ctx, queue.NackOptions{
		Delay:      normalized.Delay,
		Requeue:    normalized.Requeue,
		DeadLetter: normalized.DeadLetter,
		Reason:     normalized.Reason,
	}); err != nil {
		return err
	}
	if !normalized.Requeue {
		d.release()
	}
	return nil
}

func (d *DeliveryAdapter) release() {
	if d.settle != nil {
		d.settle()
	}
}

// DequeuerAdapter counts deliveries per idempotency key so plain Nack calls
// still reach the policy's attempt bound.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy

	mu       sync.Mutex
	attempts map[string]int
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy, attempts: map[string]int{}}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, core.InternalError("gojob: dequeuer is not configured", nil)
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	adapter := NewDeliveryAdapter(delivery, a.policy)
	key := deliveryKey(delivery)
	if key == "" {
		return adapter, nil
	}
	a.mu.Lock()
	a.attempts[key]++
	adapter.attempt = a.attempts[key]
	a.mu.Unlock()
	adapter.settle = func() {
		a.mu.Lock()
		delete(a.attempts, key)
		a.mu.Unlock()
	}
	return adapter, nil
}

func deliveryKey(delivery queue.Delivery) string {
	if delivery == nil {
		return ""
	}
	msg := delivery.Message()
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

// WorkerHookAdapter lets a go-job worker report into a checkout
// JobWorkerHook such as notify.ObservingHook.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	a.forward(event, func(e core.JobWorkerEvent) { a.hook.OnStart(ctx, e) })
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	a.forward(event, func(e core.JobWorkerEvent) { a.hook.OnSuccess(ctx, e) })
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	a.forward(event, func(e core.JobWorkerEvent) { a.hook.OnFailure(ctx, e) })
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	a.forward(event, func(e core.JobWorkerEvent) { a.hook.OnRetry(ctx, e) })
}

func (a *WorkerHookAdapter) forward(event worker.Event, fn func(core.JobWorkerEvent)) {
	if a == nil || a.hook == nil {
		return
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fn(core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	})
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*WorkerHookAdapter)(nil)
)
