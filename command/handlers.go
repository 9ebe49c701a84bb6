package command

import (
	"context"

	"github.com/goliatone/go-checkout/core"
	gocmd "github.com/goliatone/go-command"
)

type WebhookProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type ProcessWebhookCommand struct {
	processor WebhookProcessor
}

func NewProcessWebhookCommand(processor WebhookProcessor) *ProcessWebhookCommand {
	return &ProcessWebhookCommand{processor: processor}
}

func (c *ProcessWebhookCommand) Execute(ctx context.Context, msg ProcessWebhookMessage) error {
	if c == nil || c.processor == nil {
		return errMissingDependency("webhook processor")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.processor.Process(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// SendConfirmationCommand resends an order confirmation outside the webhook
// path, e.g. from an operator tool.
type SendConfirmationCommand struct {
	notifier core.Notifier
}

func NewSendConfirmationCommand(notifier core.Notifier) *SendConfirmationCommand {
	return &SendConfirmationCommand{notifier: notifier}
}

func (c *SendConfirmationCommand) Execute(ctx context.Context, msg SendConfirmationMessage) error {
	if c == nil || c.notifier == nil {
		return errMissingDependency("notifier")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := c.notifier.SendOrderConfirmation(ctx, msg.Confirmation); err != nil {
		return core.NotificationFailureError(err, msg.Confirmation.OrderID)
	}
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
