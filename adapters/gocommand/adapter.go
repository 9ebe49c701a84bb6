package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// MessageTypePrefix namespaces every message routed through the checkout
// registry.
const MessageTypePrefix = "checkout."

// ValidateMessageContract runs the message's own Validate() and then checks
// its type is in the checkout namespace.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	return validateMessageType(msg)
}

func validateMessageType(msg any) error {
	m, ok := msg.(command.Message)
	if !ok {
		return core.BadInputError("gocommand: message must implement Type() string", nil)
	}
	messageType := strings.TrimSpace(m.Type())
	if messageType == "" {
		return core.BadInputError("gocommand: message type is required", nil)
	}
	if !strings.HasPrefix(messageType, MessageTypePrefix) {
		return core.BadInputError(
			fmt.Sprintf("gocommand: message type %q is outside the %s namespace", messageType, MessageTypePrefix),
			map[string]any{"message_type": messageType},
		)
	}
	return nil
}

func errRegistryNotConfigured() error {
	return core.InternalError("gocommand: registry is not configured", nil)
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return errRegistryNotConfigured()
	}
	return a.registry.RegisterCommand(cmd)
}

// RegisterQuery goes through RegisterCommand; the go-command registry keys
// queriers and commanders the same way.
func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return errRegistryNotConfigured()
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return errRegistryNotConfigured()
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return core.BadInputError("gocommand: queue registry is required", nil)
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return errRegistryNotConfigured()
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler command.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func SubscribeQueryFunc[T any, R any](qry command.QueryFunc[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

// Dispatch rejects messages outside the checkout namespace before handing
// them to the global dispatcher.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := validateMessageType(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := validateMessageType(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, errRegistryNotConfigured()
	}
	if cmd == nil {
		return nil, core.BadInputError("gocommand: command is required", nil)
	}
	var zero T
	if err := validateMessageType(zero); err != nil {
		return nil, err
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, errRegistryNotConfigured()
	}
	if qry == nil {
		return nil, core.BadInputError("gocommand: query is required", nil)
	}
	var zero T
	if err := validateMessageType(zero); err != nil {
		return nil, err
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
