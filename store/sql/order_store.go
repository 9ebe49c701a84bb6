package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateOrderInput seeds a pending order. Checkout initiation creates these
// before redirecting the customer to the hosted payment page.
type CreateOrderInput struct {
	ID     string
	UserID string
}

type OrderStore struct {
	db           *bun.DB
	repo         repository.Repository[*orderRecord]
	shippingRepo repository.Repository[*shippingAddressRecord]
	billingRepo  repository.Repository[*billingAddressRecord]
	now          func() time.Time
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderRecord](db, orderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	shippingRepo := repository.NewRepository[*shippingAddressRecord](db, shippingAddressHandlers())
	if validator, ok := shippingRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid shipping address repository wiring: %w", err)
		}
	}
	billingRepo := repository.NewRepository[*billingAddressRecord](db, billingAddressHandlers())
	if validator, ok := billingRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid billing address repository wiring: %w", err)
		}
	}
	return &OrderStore{
		db:           db,
		repo:         repo,
		shippingRepo: shippingRepo,
		billingRepo:  billingRepo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *OrderStore) Create(ctx context.Context, in CreateOrderInput) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return core.Order{}, core.BadInputError("sqlstore: user id is required", nil)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	record := &orderRecord{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Order ids come from the checkout flow and are not always UUIDs, so the
	// insert bypasses the repository's id assignment.
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Order{}, core.ConflictError("sqlstore: order already exists", map[string]any{"order_id": id})
		}
		return core.Order{}, err
	}
	return orderToDomain(record, nil, nil), nil
}

func (s *OrderStore) Get(ctx context.Context, orderID string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return core.Order{}, core.BadInputError("sqlstore: order id is required", nil)
	}
	record, err := loadOrder(ctx, s.db, orderID)
	if err != nil {
		return core.Order{}, err
	}
	shipping, billing, err := s.loadAddresses(ctx, record)
	if err != nil {
		return core.Order{}, err
	}
	return orderToDomain(record, shipping, billing), nil
}

// UpdateOrderOnPayment marks the order paid and creates both addresses in one
// transaction. The paid flag is flipped with a conditional update so two
// concurrent deliveries cannot both create addresses.
func (s *OrderStore) UpdateOrderOnPayment(ctx context.Context, update core.PaymentUpdate) (core.PaymentOutcome, error) {
	if s == nil || s.db == nil {
		return core.PaymentOutcome{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	orderID := strings.TrimSpace(update.OrderID)
	if orderID == "" {
		return core.PaymentOutcome{}, core.InvalidOrderMetadataError("", core.MetadataKeyOrderID)
	}
	paidAt := update.PaidAt.UTC()
	if update.PaidAt.IsZero() {
		paidAt = s.now()
	}

	var outcome core.PaymentOutcome
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := loadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(update.UserID) != "" && record.UserID != strings.TrimSpace(update.UserID) {
			return core.InvalidOrderMetadataError("", core.MetadataKeyUserID)
		}
		if record.IsPaid {
			shipping, billing, err := s.loadAddressesTx(ctx, tx, record)
			if err != nil {
				return err
			}
			outcome = core.PaymentOutcome{Order: orderToDomain(record, shipping, billing), AlreadyPaid: true}
			return nil
		}

		res, err := tx.NewUpdate().
			Model((*orderRecord)(nil)).
			Set("is_paid = ?", true).
			Set("paid_at = ?", paidAt).
			Set("payment_event_id = ?", strings.TrimSpace(update.EventID)).
			Set("customer_email = ?", strings.TrimSpace(update.CustomerEmail)).
			Set("updated_at = ?", paidAt).
			Where("id = ?", orderID).
			Where("is_paid = ?", false).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			current, err := loadOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			shipping, billing, err := s.loadAddressesTx(ctx, tx, current)
			if err != nil {
				return err
			}
			outcome = core.PaymentOutcome{Order: orderToDomain(current, shipping, billing), AlreadyPaid: true}
			return nil
		}

		shipping, err := s.shippingRepo.CreateTx(ctx, tx, &shippingAddressRecord{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			Name:       update.ShippingAddress.Name,
			City:       update.ShippingAddress.City,
			Country:    update.ShippingAddress.Country,
			PostalCode: update.ShippingAddress.PostalCode,
			Street:     update.ShippingAddress.Street,
			State:      update.ShippingAddress.State,
			CreatedAt:  paidAt,
		})
		if err != nil {
			return err
		}
		billing, err := s.billingRepo.CreateTx(ctx, tx, &billingAddressRecord{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			Name:       update.BillingAddress.Name,
			City:       update.BillingAddress.City,
			Country:    update.BillingAddress.Country,
			PostalCode: update.BillingAddress.PostalCode,
			Street:     update.BillingAddress.Street,
			State:      update.BillingAddress.State,
			CreatedAt:  paidAt,
		})
		if err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*orderRecord)(nil)).
			Set("shipping_address_id = ?", shipping.ID).
			Set("billing_address_id = ?", billing.ID).
			Where("id = ?", orderID).
			Exec(ctx); err != nil {
			return err
		}

		record.IsPaid = true
		record.PaidAt = &paidAt
		record.UpdatedAt = paidAt
		record.PaymentEventID = strings.TrimSpace(update.EventID)
		record.CustomerEmail = strings.TrimSpace(update.CustomerEmail)
		record.ShippingAddressID = &shipping.ID
		record.BillingAddressID = &billing.ID
		outcome = core.PaymentOutcome{Order: orderToDomain(record, shipping, billing)}
		return nil
	})
	if err != nil {
		if core.IsTagged(err) {
			return core.PaymentOutcome{}, err
		}
		return core.PaymentOutcome{}, core.StoreFailureError(err, orderID)
	}
	return outcome, nil
}

func (s *OrderStore) loadAddresses(ctx context.Context, record *orderRecord) (*shippingAddressRecord, *billingAddressRecord, error) {
	return s.loadAddressesTx(ctx, s.db, record)
}

func (s *OrderStore) loadAddressesTx(ctx context.Context, db bun.IDB, record *orderRecord) (*shippingAddressRecord, *billingAddressRecord, error) {
	if record == nil {
		return nil, nil, nil
	}
	var shipping *shippingAddressRecord
	if record.ShippingAddressID != nil && strings.TrimSpace(*record.ShippingAddressID) != "" {
		found := &shippingAddressRecord{}
		if err := db.NewSelect().Model(found).Where("?TableAlias.id = ?", *record.ShippingAddressID).Limit(1).Scan(ctx); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, nil, err
			}
		} else {
			shipping = found
		}
	}
	var billing *billingAddressRecord
	if record.BillingAddressID != nil && strings.TrimSpace(*record.BillingAddressID) != "" {
		found := &billingAddressRecord{}
		if err := db.NewSelect().Model(found).Where("?TableAlias.id = ?", *record.BillingAddressID).Limit(1).Scan(ctx); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, nil, err
			}
		} else {
			billing = found
		}
	}
	return shipping, billing, nil
}

// MarkConfirmationSent stamps the first successful confirmation delivery.
// Later calls keep the original timestamp.
func (s *OrderStore) MarkConfirmationSent(ctx context.Context, orderID string, sentAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return core.BadInputError("sqlstore: order id is required", nil)
	}
	if sentAt.IsZero() {
		sentAt = s.now()
	}
	res, err := s.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set("confirmation_sent_at = ?", sentAt.UTC()).
		Where("id = ?", orderID).
		Where("confirmation_sent_at IS NULL").
		Exec(ctx)
	if err != nil {
		return core.StoreFailureError(err, orderID)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, err := loadOrder(ctx, s.db, orderID); err != nil {
			return err
		}
	}
	return nil
}

// ListByUser returns the user's orders, newest first, without addresses.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, limit int) ([]core.Order, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: order store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, core.BadInputError("sqlstore: user id is required", nil)
	}
	if limit <= 0 {
		limit = 20
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", userID),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Order, 0, len(records))
	for _, record := range records {
		out = append(out, orderToDomain(record, nil, nil))
	}
	return out, nil
}

// CountAddresses reports how many shipping and billing rows reference the order.
func (s *OrderStore) CountAddresses(ctx context.Context, orderID string) (int, int, error) {
	if s == nil || s.shippingRepo == nil || s.billingRepo == nil {
		return 0, 0, fmt.Errorf("sqlstore: order store is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	_, shipping, err := s.shippingRepo.List(ctx, repository.SelectBy("order_id", "=", orderID))
	if err != nil {
		return 0, 0, err
	}
	_, billing, err := s.billingRepo.List(ctx, repository.SelectBy("order_id", "=", orderID))
	if err != nil {
		return 0, 0, err
	}
	return shipping, billing, nil
}

func loadOrder(ctx context.Context, db bun.IDB, orderID string) (*orderRecord, error) {
	record := &orderRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.OrderNotFoundError(orderID, err)
		}
		return nil, err
	}
	return record, nil
}

func orderToDomain(record *orderRecord, shipping *shippingAddressRecord, billing *billingAddressRecord) core.Order {
	if record == nil {
		return core.Order{}
	}
	order := core.Order{
		ID:        record.ID,
		UserID:    record.UserID,
		IsPaid:    record.IsPaid,
		CreatedAt: record.CreatedAt.UTC(),
		UpdatedAt: record.UpdatedAt.UTC(),
	}
	if record.PaidAt != nil {
		value := record.PaidAt.UTC()
		order.PaidAt = &value
	}
	if record.ConfirmationSentAt != nil {
		value := record.ConfirmationSentAt.UTC()
		order.ConfirmationSentAt = &value
	}
	if shipping != nil {
		order.ShippingAddress = &core.Address{
			ID:         shipping.ID,
			Name:       shipping.Name,
			City:       shipping.City,
			Country:    shipping.Country,
			PostalCode: shipping.PostalCode,
			Street:     shipping.Street,
			State:      shipping.State,
		}
	}
	if billing != nil {
		order.BillingAddress = &core.Address{
			ID:         billing.ID,
			Name:       billing.Name,
			City:       billing.City,
			Country:    billing.Country,
			PostalCode: billing.PostalCode,
			Street:     billing.Street,
			State:      billing.State,
		}
	}
	return order
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
