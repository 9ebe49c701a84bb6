package core

import (
	"fmt"
	"strings"
)

const NotificationRetryJobID = "checkout.notification.retry"

// NotificationRetryMessage builds the job that redelivers a confirmation whose
// first attempt failed after the order was committed.
func NotificationRetryMessage(confirmation OrderConfirmation, eventID string) *JobExecutionMessage {
	key := "checkout.notification:" + strings.TrimSpace(confirmation.OrderID)
	if eventID = strings.TrimSpace(eventID); eventID != "" {
		key += ":" + eventID
	}
	return &JobExecutionMessage{
		JobID:          NotificationRetryJobID,
		Parameters:     ConfirmationToParameters(confirmation),
		IdempotencyKey: key,
		DedupPolicy:    "drop",
	}
}

func ConfirmationToParameters(confirmation OrderConfirmation) map[string]any {
	return map[string]any{
		"to":         confirmation.To,
		"subject":    confirmation.Subject,
		"order_id":   confirmation.OrderID,
		"order_date": confirmation.OrderDate,
		"shipping_address": map[string]any{
			"name":        confirmation.ShippingAddress.Name,
			"city":        confirmation.ShippingAddress.City,
			"country":     confirmation.ShippingAddress.Country,
			"postal_code": confirmation.ShippingAddress.PostalCode,
			"street":      confirmation.ShippingAddress.Street,
			"state":       confirmation.ShippingAddress.State,
		},
	}
}

func ConfirmationFromParameters(params map[string]any) (OrderConfirmation, error) {
	confirmation := OrderConfirmation{
		To:        paramString(params, "to"),
		Subject:   paramString(params, "subject"),
		OrderID:   paramString(params, "order_id"),
		OrderDate: paramString(params, "order_date"),
	}
	if confirmation.To == "" || confirmation.OrderID == "" {
		return OrderConfirmation{}, BadInputError(
			"core: notification retry parameters require to and order_id",
			map[string]any{"order_id": confirmation.OrderID},
		)
	}
	if address, ok := params["shipping_address"].(map[string]any); ok {
		confirmation.ShippingAddress = Address{
			Name:       paramString(address, "name"),
			City:       paramString(address, "city"),
			Country:    paramString(address, "country"),
			PostalCode: paramString(address, "postal_code"),
			Street:     paramString(address, "street"),
			State:      paramString(address, "state"),
		}
	}
	return confirmation, nil
}

func paramString(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
