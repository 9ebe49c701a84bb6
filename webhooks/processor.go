package webhooks

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

type DeliveryRecord struct {
	ID             string
	ClaimID        string
	ProviderID     string
	EventID        string
	EventType      string
	Status         string
	Attempts       int
	LastError      string
	NextAttemptAt  *time.Time
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeliveryLedger tracks verified events by (provider, event id) so provider
// redeliveries of a processed event are acknowledged without running the
// handler again.
type DeliveryLedger interface {
	Claim(ctx context.Context, event core.InboundEvent, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, eventID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type Dispatcher interface {
	Route(ctx context.Context, event core.InboundEvent) (core.InboundResult, error)
}

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Processor runs one inbound provider notification through verify, ledger
// claim and dispatch. Ledger is optional.
type Processor struct {
	Verifier        core.EventVerifier
	Ledger          DeliveryLedger
	Dispatcher      Dispatcher
	RetryPolicy     RetryPolicy
	ClaimLease      time.Duration
	MaxAttempts     int
	Now             func() time.Time
	Logger          core.Logger
	MetricsRecorder core.MetricsRecorder
}

func NewProcessor(verifier core.EventVerifier, ledger DeliveryLedger, dispatcher Dispatcher) *Processor {
	return &Processor{
		Verifier:        verifier,
		Ledger:          ledger,
		Dispatcher:      dispatcher,
		RetryPolicy:     ExponentialRetryPolicy{},
		ClaimLease:      30 * time.Second,
		MaxAttempts:     8,
		Logger:          glog.Nop(),
		MetricsRecorder: core.NopMetricsRecorder{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	startedAt := time.Now()
	fields := map[string]any{"provider_id": strings.TrimSpace(req.ProviderID)}
	result, err := p.process(ctx, req, fields)
	if p != nil {
		if err == nil {
			fields["outcome"] = OutcomeOf(result)
		}
		core.ObserveOperation(ctx, p.Logger, p.MetricsRecorder, startedAt, "process_webhook", err, fields)
	}
	return result, err
}

func (p *Processor) process(ctx context.Context, req core.InboundRequest, fields map[string]any) (core.InboundResult, error) {
	if p == nil || p.Verifier == nil || p.Dispatcher == nil {
		return core.InboundResult{}, core.InternalError("webhooks: processor requires verifier and dispatcher", nil)
	}

	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		return core.InboundResult{}, core.BadInputError("webhooks: provider id is required", nil)
	}
	req.ProviderID = providerID

	event, err := p.Verifier.Verify(ctx, req)
	if err != nil {
		if !core.IsTagged(err) {
			err = core.InvalidSignatureError(err)
		}
		status := http.StatusInternalServerError
		if core.IsSignatureError(err) {
			status = http.StatusBadRequest
		}
		return core.InboundResult{
			Accepted:   false,
			StatusCode: status,
			Metadata: map[string]any{
				"provider_id": providerID,
				"rejected":    true,
			},
		}, err
	}
	if event.ProviderID == "" {
		event.ProviderID = providerID
	}
	fields["event_id"] = event.ID
	fields["event_type"] = event.Type
	p.logVerified(ctx, event)

	claimID := ""
	attempts := 0
	if p.Ledger != nil {
		if strings.TrimSpace(event.ID) == "" {
			return core.InboundResult{}, core.InvalidPayloadError(errors.New("webhooks: event id is required for dedupe"), "")
		}
		record, claimed, claimErr := p.Ledger.Claim(ctx, event, req.Body, p.claimLease())
		if claimErr != nil {
			return core.InboundResult{}, core.WrapError(
				claimErr,
				goerrors.CategoryOperation,
				"webhooks: delivery claim failed",
				http.StatusInternalServerError,
				core.ErrorStoreFailure,
				map[string]any{"provider_id": providerID, "event_id": event.ID},
			)
		}
		if !claimed {
			return p.unclaimed(record)
		}
		claimID = record.ClaimID
		attempts = record.Attempts
	}

	result, err := p.Dispatcher.Route(ctx, event)
	if err != nil {
		p.fail(ctx, claimID, attempts, err)
		return core.InboundResult{}, err
	}

	if claimID != "" {
		if err := p.Ledger.Complete(ctx, claimID); err != nil {
			return core.InboundResult{}, core.StoreFailureError(err, "")
		}
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["provider_id"] = providerID
	result.Metadata["event_id"] = event.ID
	result.Metadata["event_type"] = event.Type
	return result, nil
}

// unclaimed maps a ledger refusal. Only processed events are acknowledged.
// Dead events keep failing with their last error so the loss stays visible to
// the provider; in-flight or not-yet-due events fail so the provider keeps its
// own retry schedule.
func (p *Processor) unclaimed(record DeliveryRecord) (core.InboundResult, error) {
	metadata := map[string]any{
		"provider_id": record.ProviderID,
		"event_id":    record.EventID,
		"event_type":  record.EventType,
		"status":      record.Status,
	}
	switch record.Status {
	case DeliveryStatusProcessed:
		metadata["deduped"] = true
		return core.InboundResult{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
	case DeliveryStatusDead:
		metadata["attempts"] = record.Attempts
		metadata["last_error"] = record.LastError
		return core.InboundResult{}, core.DeliveryExhaustedError(record.LastError, metadata)
	default:
		return core.InboundResult{}, core.ConflictError("webhooks: event delivery already in progress", metadata)
	}
}

func (p *Processor) fail(ctx context.Context, claimID string, attempts int, cause error) {
	if claimID == "" {
		return
	}
	nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(attempts))
	if err := p.Ledger.Fail(ctx, claimID, cause, nextAttemptAt, p.maxAttempts()); err != nil {
		core.LogWithFields(ctx, p.Logger, "error", "webhook delivery fail mark failed", map[string]any{
			"claim_id": claimID,
			"error":    err.Error(),
		})
	}
}

func (p *Processor) logVerified(ctx context.Context, event core.InboundEvent) {
	core.LogWithFields(ctx, p.Logger, "info", "webhook event verified", map[string]any{
		"provider_id": event.ProviderID,
		"event_id":    event.ID,
		"event_type":  event.Type,
		"api_version": event.APIVersion,
		"livemode":    event.Livemode,
		"payload":     core.RedactPayload(event.Data),
	})
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

// OutcomeOf names how a successful delivery was settled: deduped, ignored,
// the handler-reported outcome, or handled.
func OutcomeOf(result core.InboundResult) string {
	if deduped, _ := result.Metadata["deduped"].(bool); deduped {
		return "deduped"
	}
	if ignored, _ := result.Metadata["ignored"].(bool); ignored {
		return "ignored"
	}
	if outcome, ok := result.Metadata["outcome"].(string); ok && outcome != "" {
		return outcome
	}
	return "handled"
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}
