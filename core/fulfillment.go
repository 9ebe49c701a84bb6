package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// OrderDateLayout renders the confirmation order date (month/day/year without
// padding).
const OrderDateLayout = "1/2/2006"

// DecodeCheckoutSession decodes the event object of a completed checkout.
// Field presence is not validated here; BuildPaymentUpdate does that.
func DecodeCheckoutSession(eventID string, raw json.RawMessage) (CheckoutSession, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return CheckoutSession{}, InvalidPayloadError(nil, eventID)
	}
	var session CheckoutSession
	if err := json.Unmarshal(trimmed, &session); err != nil {
		return CheckoutSession{}, InvalidPayloadError(err, eventID)
	}
	if session.ShippingDetails == nil && session.CollectedInformation != nil {
		session.ShippingDetails = session.CollectedInformation.ShippingDetails
	}
	return session, nil
}

// BuildPaymentUpdate validates the session and assembles the store write.
// Email is checked before metadata so each failure keeps its own tag.
func BuildPaymentUpdate(eventID string, session CheckoutSession, paidAt time.Time) (PaymentUpdate, error) {
	email := ""
	name := ""
	var billing *ProviderAddress
	if session.CustomerDetails != nil {
		email = stringValue(session.CustomerDetails.Email)
		name = stringValue(session.CustomerDetails.Name)
		billing = session.CustomerDetails.Address
	}
	if email == "" {
		return PaymentUpdate{}, MissingCustomerEmailError(session.ID)
	}

	userID := strings.TrimSpace(session.Metadata[MetadataKeyUserID])
	orderID := strings.TrimSpace(session.Metadata[MetadataKeyOrderID])
	missing := make([]string, 0, 2)
	if userID == "" {
		missing = append(missing, MetadataKeyUserID)
	}
	if orderID == "" {
		missing = append(missing, MetadataKeyOrderID)
	}
	if len(missing) > 0 {
		return PaymentUpdate{}, InvalidOrderMetadataError(session.ID, missing...)
	}

	var shipping *ProviderAddress
	if session.ShippingDetails != nil {
		shipping = session.ShippingDetails.Address
	}

	return PaymentUpdate{
		OrderID:         orderID,
		UserID:          userID,
		EventID:         strings.TrimSpace(eventID),
		CustomerEmail:   email,
		CustomerName:    name,
		ShippingAddress: buildAddress(name, shipping),
		BillingAddress:  buildAddress(name, billing),
		PaidAt:          paidAt.UTC(),
	}, nil
}

// BuildOrderConfirmation maps a paid order onto the confirmation message.
func BuildOrderConfirmation(update PaymentUpdate, order Order, subject string) OrderConfirmation {
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = update.PaidAt
	}
	orderID := order.ID
	if orderID == "" {
		orderID = update.OrderID
	}
	return OrderConfirmation{
		To:              update.CustomerEmail,
		Subject:         subject,
		OrderID:         orderID,
		OrderDate:       createdAt.Format(OrderDateLayout),
		ShippingAddress: update.ShippingAddress,
	}
}

func buildAddress(name string, source *ProviderAddress) Address {
	address := Address{Name: name}
	if source == nil {
		return address
	}
	address.City = stringValue(source.City)
	address.Country = stringValue(source.Country)
	address.PostalCode = stringValue(source.PostalCode)
	address.Street = stringValue(source.Line1)
	address.State = stringValue(source.State)
	return address
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
