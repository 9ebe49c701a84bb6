package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type orderRecord struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                 string     `bun:"id,pk"`
	UserID             string     `bun:"user_id,notnull"`
	IsPaid             bool       `bun:"is_paid,notnull"`
	PaymentEventID     string     `bun:"payment_event_id,notnull"`
	CustomerEmail      string     `bun:"customer_email,notnull"`
	ShippingAddressID  *string    `bun:"shipping_address_id"`
	BillingAddressID   *string    `bun:"billing_address_id"`
	PaidAt             *time.Time `bun:"paid_at,nullzero"`
	ConfirmationSentAt *time.Time `bun:"confirmation_sent_at,nullzero"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type shippingAddressRecord struct {
	bun.BaseModel `bun:"table:shipping_addresses,alias:sa"`

	ID         string    `bun:"id,pk"`
	OrderID    string    `bun:"order_id,notnull"`
	Name       string    `bun:"name,notnull"`
	City       string    `bun:"city,notnull"`
	Country    string    `bun:"country,notnull"`
	PostalCode string    `bun:"postal_code,notnull"`
	Street     string    `bun:"street,notnull"`
	State      string    `bun:"state,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type billingAddressRecord struct {
	bun.BaseModel `bun:"table:billing_addresses,alias:ba"`

	ID         string    `bun:"id,pk"`
	OrderID    string    `bun:"order_id,notnull"`
	Name       string    `bun:"name,notnull"`
	City       string    `bun:"city,notnull"`
	Country    string    `bun:"country,notnull"`
	PostalCode string    `bun:"postal_code,notnull"`
	Street     string    `bun:"street,notnull"`
	State      string    `bun:"state,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type webhookEventRecord struct {
	bun.BaseModel `bun:"table:webhook_events,alias:we"`

	ID             string         `bun:"id,pk"`
	ClaimID        string         `bun:"claim_id,notnull"`
	ProviderID     string         `bun:"provider_id,notnull"`
	EventID        string         `bun:"event_id,notnull"`
	EventType      string         `bun:"event_type,notnull"`
	Status         string         `bun:"status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	LastError      string         `bun:"last_error,notnull"`
	Payload        map[string]any `bun:"payload,type:jsonb,notnull"`
	NextAttemptAt  *time.Time     `bun:"next_attempt_at,nullzero"`
	LeaseExpiresAt *time.Time     `bun:"lease_expires_at,nullzero"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
