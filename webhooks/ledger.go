package webhooks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-checkout/core"
)

// InMemoryDeliveryLedger is a process-local DeliveryLedger. Records are never
// evicted, so it suits tests and single-instance development runs.
type InMemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewInMemoryDeliveryLedger() *InMemoryDeliveryLedger {
	return &InMemoryDeliveryLedger{
		records: map[string]DeliveryRecord{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *InMemoryDeliveryLedger) Claim(
	_ context.Context,
	event core.InboundEvent,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, core.InternalError("webhooks: delivery ledger is nil", nil)
	}
	providerID := strings.TrimSpace(event.ProviderID)
	eventID := strings.TrimSpace(event.ID)
	if providerID == "" || eventID == "" {
		return DeliveryRecord{}, false, core.BadInputError("webhooks: provider id and event id are required", nil)
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()
	key := deliveryKey(providerID, eventID)

	l.mu.Lock()
	defer l.mu.Unlock()
	record, exists := l.records[key]
	if !exists {
		record = DeliveryRecord{
			ID:         key,
			ProviderID: providerID,
			EventID:    eventID,
			EventType:  event.Type,
			CreatedAt:  now,
		}
	} else if !Claimable(record, now) {
		return record, false, nil
	}

	if record.ClaimID != "" {
		delete(l.claims, record.ClaimID)
	}
	leaseExpiresAt := now.Add(lease)
	record.ClaimID = l.nextClaimID()
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.LeaseExpiresAt = &leaseExpiresAt
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	l.records[key] = record
	l.claims[record.ClaimID] = key
	return record, true, nil
}

func (l *InMemoryDeliveryLedger) Get(_ context.Context, providerID string, eventID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, core.InternalError("webhooks: delivery ledger is nil", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[deliveryKey(strings.TrimSpace(providerID), strings.TrimSpace(eventID))]
	if !ok {
		return DeliveryRecord{}, core.NotFoundError(
			"webhooks: delivery not found",
			map[string]any{"provider_id": providerID, "event_id": eventID},
		)
	}
	return record, nil
}

// ListByStatus returns up to limit deliveries in status, most recently
// updated first.
func (l *InMemoryDeliveryLedger) ListByStatus(_ context.Context, status string, limit int) ([]DeliveryRecord, error) {
	if l == nil {
		return nil, core.InternalError("webhooks: delivery ledger is nil", nil)
	}
	if limit <= 0 {
		limit = 50
	}
	status = strings.TrimSpace(status)
	l.mu.Lock()
	out := make([]DeliveryRecord, 0, len(l.records))
	for _, record := range l.records {
		if record.Status == status {
			out = append(out, record)
		}
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *InMemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return core.InternalError("webhooks: delivery ledger is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return core.BadInputError("webhooks: claim id is required", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.claimedLocked(claimID)
	if !ok {
		return nil
	}
	record.Status = DeliveryStatusProcessed
	record.LeaseExpiresAt = nil
	record.LastError = ""
	record.UpdatedAt = l.now()
	l.records[record.ID] = record
	delete(l.claims, claimID)
	return nil
}

func (l *InMemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return core.InternalError("webhooks: delivery ledger is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return core.BadInputError("webhooks: claim id is required", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.claimedLocked(claimID)
	if !ok {
		return nil
	}
	now := l.now()
	if nextAttemptAt.IsZero() {
		nextAttemptAt = now
	}
	nextAttemptAt = nextAttemptAt.UTC()
	record.Status = DeliveryStatusRetryReady
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	record.NextAttemptAt = &nextAttemptAt
	record.LeaseExpiresAt = nil
	record.UpdatedAt = now
	l.records[record.ID] = record
	delete(l.claims, claimID)
	return nil
}

func (l *InMemoryDeliveryLedger) claimedLocked(claimID string) (DeliveryRecord, bool) {
	key, ok := l.claims[claimID]
	if !ok {
		return DeliveryRecord{}, false
	}
	record, exists := l.records[key]
	if !exists || record.ClaimID != claimID || record.Status != DeliveryStatusProcessing {
		delete(l.claims, claimID)
		return DeliveryRecord{}, false
	}
	return record, true
}

func (l *InMemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *InMemoryDeliveryLedger) nextClaimID() string {
	l.nextID++
	return fmt.Sprintf("claim_%d", l.nextID)
}

// Claimable reports whether an existing record may be processed again at now.
func Claimable(record DeliveryRecord, now time.Time) bool {
	switch record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		return false
	case DeliveryStatusProcessing:
		return record.LeaseExpiresAt != nil && !now.Before(*record.LeaseExpiresAt)
	case DeliveryStatusRetryReady:
		return record.NextAttemptAt == nil || !now.Before(*record.NextAttemptAt)
	default:
		return true
	}
}

func deliveryKey(providerID string, eventID string) string {
	return providerID + ":" + eventID
}

var _ DeliveryLedger = (*InMemoryDeliveryLedger)(nil)
