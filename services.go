package checkout

import "github.com/goliatone/go-checkout/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Order = core.Order
type Address = core.Address
type OrderConfirmation = core.OrderConfirmation
type OrderStore = core.OrderStore
type OrderReader = core.OrderReader
type Notifier = core.Notifier

type InboundRequest = core.InboundRequest
type InboundResult = core.InboundResult
type InboundEvent = core.InboundEvent

type EventHandler = core.EventHandler
type EventVerifier = core.EventVerifier

var (
	WithLogger                    = core.WithLogger
	WithLoggerProvider            = core.WithLoggerProvider
	WithMetricsRecorder           = core.WithMetricsRecorder
	WithConfigProvider            = core.WithConfigProvider
	WithOptionsResolver           = core.WithOptionsResolver
	WithOrderStore                = core.WithOrderStore
	WithNotifier                  = core.WithNotifier
	WithNotificationRetryEnqueuer = core.WithNotificationRetryEnqueuer
	WithClock                     = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds the checkout.session.completed handler.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
