package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/resend/resend-go/v2"
)

// EmailSender is the subset of the Resend emails service used here.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendNotifier struct {
	sender EmailSender
	from   string
	logger core.Logger
}

type ResendOption func(*ResendNotifier)

func WithResendLogger(logger core.Logger) ResendOption {
	return func(n *ResendNotifier) {
		n.logger = logger
	}
}

func NewResendNotifier(sender EmailSender, from string, opts ...ResendOption) (*ResendNotifier, error) {
	if sender == nil {
		return nil, core.BadInputError("notify: resend sender is required", nil)
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, core.BadInputError("notify: sender address is required", nil)
	}
	notifier := &ResendNotifier{sender: sender, from: from, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(notifier)
		}
	}
	return notifier, nil
}

// NewResendNotifierFromAPIKey builds a notifier backed by the Resend HTTP API.
func NewResendNotifierFromAPIKey(apiKey string, from string, opts ...ResendOption) (*ResendNotifier, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, core.BadInputError("notify: resend api key is required", nil)
	}
	client := resend.NewClient(apiKey)
	return NewResendNotifier(client.Emails, from, opts...)
}

func (n *ResendNotifier) SendOrderConfirmation(ctx context.Context, confirmation core.OrderConfirmation) error {
	if n == nil || n.sender == nil {
		return core.InternalError("notify: resend notifier is not configured", nil)
	}
	to := strings.TrimSpace(confirmation.To)
	if to == "" {
		return core.BadInputError("notify: recipient is required", map[string]any{"order_id": confirmation.OrderID})
	}
	html, err := RenderConfirmation(confirmation)
	if err != nil {
		return core.WrapError(
			err,
			goerrors.CategoryInternal,
			"notify: render confirmation",
			http.StatusInternalServerError,
			core.ErrorInternal,
			map[string]any{"order_id": confirmation.OrderID},
		)
	}
	sent, err := n.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to},
		Subject: confirmation.Subject,
		Html:    html,
		Tags: []resend.Tag{
			{Name: "category", Value: "order_confirmation"},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: resend send failed: %w", err)
	}
	messageID := ""
	if sent != nil {
		messageID = sent.Id
	}
	core.LogWithFields(ctx, n.logger, "info", "order confirmation sent", map[string]any{
		"order_id":   confirmation.OrderID,
		"message_id": messageID,
	})
	return nil
}

var _ core.Notifier = (*ResendNotifier)(nil)
