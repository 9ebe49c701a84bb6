package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultClaimLease = 30 * time.Second

// WebhookEventStore is the SQL delivery ledger. Rows are unique on
// (provider_id, event_id); claims rotate claim_id so a stale worker cannot
// settle a delivery it no longer owns.
type WebhookEventStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookEventRecord]
	now  func() time.Time
}

func NewWebhookEventStore(db *bun.DB) (*WebhookEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEventRecord](db, webhookEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook event repository wiring: %w", err)
		}
	}
	return &WebhookEventStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *WebhookEventStore) Claim(
	ctx context.Context,
	event core.InboundEvent,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	providerID := strings.TrimSpace(event.ProviderID)
	eventID := strings.TrimSpace(event.ID)
	if providerID == "" || eventID == "" {
		return webhooks.DeliveryRecord{}, false, core.BadInputError("sqlstore: provider id and event id are required", nil)
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := s.now()
	leaseExpiresAt := now.Add(lease)

	record := &webhookEventRecord{
		ID:             uuid.NewString(),
		ClaimID:        uuid.NewString(),
		ProviderID:     providerID,
		EventID:        eventID,
		EventType:      strings.TrimSpace(event.Type),
		Status:         webhooks.DeliveryStatusProcessing,
		Attempts:       1,
		Payload:        core.RedactPayload(payload),
		LeaseExpiresAt: &leaseExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err == nil {
		return webhookEventToDomain(record), true, nil
	} else if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, err
	}

	existing, err := s.load(ctx, providerID, eventID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if !webhooks.Claimable(webhookEventToDomain(existing), now) {
		return webhookEventToDomain(existing), false, nil
	}

	claimID := uuid.NewString()
	res, err := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("lease_expires_at = ?", leaseExpiresAt).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("claim_id = ?", existing.ClaimID).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		current, loadErr := s.load(ctx, providerID, eventID)
		if loadErr != nil {
			return webhooks.DeliveryRecord{}, false, loadErr
		}
		return webhookEventToDomain(current), false, nil
	}

	existing.ClaimID = claimID
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.LeaseExpiresAt = &leaseExpiresAt
	existing.NextAttemptAt = nil
	existing.UpdatedAt = now
	return webhookEventToDomain(existing), true, nil
}

func (s *WebhookEventStore) Get(ctx context.Context, providerID string, eventID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	record, err := s.load(ctx, strings.TrimSpace(providerID), strings.TrimSpace(eventID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return webhookEventToDomain(record), nil
}

func (s *WebhookEventStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return core.BadInputError("sqlstore: claim id is required", nil)
	}
	_, err := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("last_error = ?", "").
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	return err
}

func (s *WebhookEventStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return core.BadInputError("sqlstore: claim id is required", nil)
	}
	now := s.now()
	if nextAttemptAt.IsZero() {
		nextAttemptAt = now
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	status := webhooks.DeliveryStatusRetryReady
	query := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("last_error = ?", lastError).
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing)
	if maxAttempts > 0 {
		query = query.Set(
			"status = CASE WHEN attempts >= ? THEN ? ELSE ? END",
			maxAttempts,
			webhooks.DeliveryStatusDead,
			status,
		)
	} else {
		query = query.Set("status = ?", status)
	}
	_, err := query.Exec(ctx)
	return err
}

// ListByStatus returns the most recently updated deliveries in status.
func (s *WebhookEventStore) ListByStatus(ctx context.Context, status string, limit int) ([]webhooks.DeliveryRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", strings.TrimSpace(status)),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]webhooks.DeliveryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, webhookEventToDomain(record))
	}
	return out, nil
}

func (s *WebhookEventStore) load(ctx context.Context, providerID string, eventID string) (*webhookEventRecord, error) {
	record := &webhookEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NotFoundError(
				"sqlstore: webhook event not found",
				map[string]any{"provider_id": providerID, "event_id": eventID},
			)
		}
		return nil, err
	}
	return record, nil
}

func webhookEventToDomain(record *webhookEventRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		ProviderID: record.ProviderID,
		EventID:    record.EventID,
		EventType:  record.EventType,
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt.UTC(),
		UpdatedAt:  record.UpdatedAt.UTC(),
	}
	if record.NextAttemptAt != nil {
		value := record.NextAttemptAt.UTC()
		result.NextAttemptAt = &value
	}
	if record.LeaseExpiresAt != nil {
		value := record.LeaseExpiresAt.UTC()
		result.LeaseExpiresAt = &value
	}
	return result
}
