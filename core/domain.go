package core

import (
	"encoding/json"
	"time"
)

const EventTypeCheckoutSessionCompleted = "checkout.session.completed"

const (
	MetadataKeyUserID  = "userId"
	MetadataKeyOrderID = "orderId"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

type Address struct {
	ID         string
	Name       string
	City       string
	Country    string
	PostalCode string
	Street     string
	State      string
}

type Order struct {
	ID              string
	UserID          string
	IsPaid          bool
	PaidAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ShippingAddress *Address
	BillingAddress  *Address

	// ConfirmationSentAt stays nil until the confirmation email is delivered.
	ConfirmationSentAt *time.Time
}

func (o Order) Status() OrderStatus {
	if o.IsPaid {
		return OrderStatusPaid
	}
	return OrderStatusPending
}

// InboundEvent is a verified provider notification. Data holds the raw
// event object and is only trusted for authenticity, not for shape.
type InboundEvent struct {
	ID         string
	ProviderID string
	Type       string
	APIVersion string
	Livemode   bool
	Created    time.Time
	Data       json.RawMessage
}

type ProviderAddress struct {
	City       *string `json:"city"`
	Country    *string `json:"country"`
	Line1      *string `json:"line1"`
	Line2      *string `json:"line2"`
	PostalCode *string `json:"postal_code"`
	State      *string `json:"state"`
}

type CustomerDetails struct {
	Name    *string          `json:"name"`
	Email   *string          `json:"email"`
	Address *ProviderAddress `json:"address"`
}

type ShippingDetails struct {
	Name    *string          `json:"name"`
	Address *ProviderAddress `json:"address"`
}

type CollectedInformation struct {
	ShippingDetails *ShippingDetails `json:"shipping_details"`
}

type CheckoutSession struct {
	ID                   string                `json:"id"`
	CustomerDetails      *CustomerDetails      `json:"customer_details"`
	ShippingDetails      *ShippingDetails      `json:"shipping_details"`
	CollectedInformation *CollectedInformation `json:"collected_information"`
	Metadata             map[string]string     `json:"metadata"`
}

type PaymentUpdate struct {
	OrderID         string
	UserID          string
	EventID         string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress Address
	BillingAddress  Address
	PaidAt          time.Time
}

type PaymentOutcome struct {
	Order       Order
	AlreadyPaid bool
}

type OrderConfirmation struct {
	To              string
	Subject         string
	OrderID         string
	OrderDate       string
	ShippingAddress Address
}
