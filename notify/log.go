package notify

import (
	"context"
	"strings"

	"github.com/goliatone/go-checkout/core"
	glog "github.com/goliatone/go-logger/glog"
)

// LogNotifier writes confirmations to the logger instead of sending them.
// It is meant for local development and tests.
type LogNotifier struct {
	Logger core.Logger
}

func NewLogNotifier(logger core.Logger) *LogNotifier {
	return &LogNotifier{Logger: glog.Ensure(logger)}
}

func (n *LogNotifier) SendOrderConfirmation(ctx context.Context, confirmation core.OrderConfirmation) error {
	if strings.TrimSpace(confirmation.To) == "" {
		return core.BadInputError("notify: recipient is required", map[string]any{"order_id": confirmation.OrderID})
	}
	logger := glog.Nop()
	if n != nil && n.Logger != nil {
		logger = n.Logger
	}
	core.LogWithFields(ctx, logger, "info", "order confirmation (log driver)", map[string]any{
		"order_id":   confirmation.OrderID,
		"recipient":  MaskRecipient(confirmation.To),
		"subject":    confirmation.Subject,
		"order_date": confirmation.OrderDate,
	})
	return nil
}

// MaskRecipient keeps the first character of the local part and the domain.
func MaskRecipient(address string) string {
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return "***"
	}
	return address[:1] + "***" + address[at:]
}

var _ core.Notifier = (*LogNotifier)(nil)
