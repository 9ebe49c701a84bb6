package command

import (
	"strings"

	"github.com/goliatone/go-checkout/core"
)

const (
	TypeProcessWebhook   = "checkout.command.webhook.process"
	TypeSendConfirmation = "checkout.command.confirmation.send"
)

// ProcessWebhookMessage carries one raw provider delivery. Body must be the
// exact bytes received.
type ProcessWebhookMessage struct {
	Request core.InboundRequest
}

func (ProcessWebhookMessage) Type() string { return TypeProcessWebhook }

func (m ProcessWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return errInvalidField("provider_id", "provider id is required")
	}
	return nil
}

type SendConfirmationMessage struct {
	Confirmation core.OrderConfirmation
}

func (SendConfirmationMessage) Type() string { return TypeSendConfirmation }

func (m SendConfirmationMessage) Validate() error {
	if strings.TrimSpace(m.Confirmation.To) == "" {
		return errInvalidField("to", "recipient is required")
	}
	if strings.TrimSpace(m.Confirmation.OrderID) == "" {
		return errInvalidField("order_id", "order id is required")
	}
	return nil
}
