package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-checkout/core"
)

const defaultPollInterval = 250 * time.Millisecond

// MemoryQueue is a process-local job queue with delayed requeue. Messages
// with a non-empty idempotency key are dropped while an equal key is queued
// or in flight.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []queuedMessage
	inFlight map[string]struct{}
	dead     []*core.JobExecutionMessage
	notify   chan struct{}

	Now          func() time.Time
	PollInterval time.Duration
}

type queuedMessage struct {
	message *core.JobExecutionMessage
	readyAt time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		inFlight:     map[string]struct{}{},
		notify:       make(chan struct{}, 1),
		Now:          time.Now,
		PollInterval: defaultPollInterval,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	if msg == nil {
		return core.BadInputError("notify: job message is required", nil)
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return core.BadInputError("notify: job id is required", nil)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isDuplicateLocked(msg.IdempotencyKey) {
		return nil
	}
	q.pushLocked(cloneMessage(msg), q.now())
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	for {
		delivery, wait := q.tryDequeue()
		if delivery != nil {
			return delivery, nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Len reports queued messages, including delayed ones.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *MemoryQueue) tryDequeue() (core.JobDelivery, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	wait := q.pollInterval()
	for idx, item := range q.pending {
		if item.readyAt.After(now) {
			if until := item.readyAt.Sub(now); until < wait {
				wait = until
			}
			continue
		}
		q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
		if key := strings.TrimSpace(item.message.IdempotencyKey); key != "" {
			q.inFlight[key] = struct{}{}
		}
		return &memoryDelivery{queue: q, message: item.message}, 0
	}
	return nil, wait
}

// DeadLetters returns messages that were nacked to the dead letter set.
func (q *MemoryQueue) DeadLetters() []*core.JobExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*core.JobExecutionMessage(nil), q.dead...)
}

func (q *MemoryQueue) settle(msg *core.JobExecutionMessage, opts core.JobNackOptions, acked bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		delete(q.inFlight, key)
	}
	if acked {
		return
	}
	if opts.DeadLetter {
		q.dead = append(q.dead, msg)
		return
	}
	if !opts.Requeue {
		return
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	q.pushLocked(msg, q.now().Add(delay))
}

func (q *MemoryQueue) pushLocked(msg *core.JobExecutionMessage, readyAt time.Time) {
	q.pending = append(q.pending, queuedMessage{message: msg, readyAt: readyAt})
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) isDuplicateLocked(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	if _, ok := q.inFlight[key]; ok {
		return true
	}
	for _, item := range q.pending {
		if strings.TrimSpace(item.message.IdempotencyKey) == key {
			return true
		}
	}
	return false
}

func (q *MemoryQueue) now() time.Time {
	if q.Now != nil {
		return q.Now().UTC()
	}
	return time.Now().UTC()
}

func (q *MemoryQueue) pollInterval() time.Duration {
	if q.PollInterval > 0 {
		return q.PollInterval
	}
	return defaultPollInterval
}

type memoryDelivery struct {
	queue   *MemoryQueue
	message *core.JobExecutionMessage
	once    sync.Once
}

func (d *memoryDelivery) Message() *core.JobExecutionMessage {
	return d.message
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() {
		d.queue.settle(d.message, core.JobNackOptions{}, true)
	})
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts core.JobNackOptions) error {
	d.once.Do(func() {
		d.queue.settle(d.message, opts, false)
	})
	return nil
}

func cloneMessage(msg *core.JobExecutionMessage) *core.JobExecutionMessage {
	out := *msg
	if msg.Parameters != nil {
		out.Parameters = make(map[string]any, len(msg.Parameters))
		for key, value := range msg.Parameters {
			out.Parameters[key] = value
		}
	}
	return &out
}

var (
	_ core.JobEnqueuer = (*MemoryQueue)(nil)
	_ core.JobDequeuer = (*MemoryQueue)(nil)
)
