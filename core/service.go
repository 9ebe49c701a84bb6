package core

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service fulfills completed checkout sessions: it validates the session,
// applies the paid transition through the OrderStore and requests the
// confirmation email.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	orderStore      OrderStore
	notifier        Notifier
	retryEnqueuer   JobEnqueuer
	now             func() time.Time
	telemetry       telemetry
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	OrderStore      OrderStore
	Notifier        Notifier
	RetryEnqueuer   JobEnqueuer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("checkout", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("checkout"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, WrapError(err, goerrors.CategoryInternal, "core: load config", http.StatusInternalServerError, ErrorInternal, nil)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, WrapError(err, goerrors.CategoryInternal, "core: resolve config", http.StatusInternalServerError, ErrorInternal, nil)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		orderStore:      builder.orderStore,
		notifier:        builder.notifier,
		retryEnqueuer:   builder.retryEnqueuer,
		now:             builder.now,
		telemetry:       telemetry{logger: logger, metricsRecorder: builder.metricsRecorder},
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		OrderStore:      s.orderStore,
		Notifier:        s.notifier,
		RetryEnqueuer:   s.retryEnqueuer,
	}
}

func (s *Service) EventType() string {
	return EventTypeCheckoutSessionCompleted
}

func (s *Service) Handle(ctx context.Context, event InboundEvent) (InboundResult, error) {
	startedAt := time.Now()
	fields := map[string]any{
		"provider_id": event.ProviderID,
		"event_id":    event.ID,
		"event_type":  event.Type,
	}
	result, err := s.fulfill(ctx, event, fields)
	if err == nil {
		fields["outcome"] = result.Metadata["outcome"]
	}
	s.telemetry.observe(ctx, startedAt, "fulfill_order", err, fields)
	return result, err
}

func (s *Service) fulfill(ctx context.Context, event InboundEvent, fields map[string]any) (InboundResult, error) {
	if s == nil || s.orderStore == nil {
		return InboundResult{}, InternalError("core: order store is not configured", nil)
	}

	session, err := DecodeCheckoutSession(event.ID, event.Data)
	if err != nil {
		return InboundResult{}, err
	}
	fields["session_id"] = session.ID

	update, err := BuildPaymentUpdate(event.ID, session, s.now())
	if err != nil {
		return InboundResult{}, err
	}
	fields["order_id"] = update.OrderID
	if update.CustomerName == "" {
		s.telemetry.log(ctx, "warn", "checkout session has no customer name", cloneFields(fields))
	}

	outcome, err := s.orderStore.UpdateOrderOnPayment(ctx, update)
	if err != nil {
		if !IsTagged(err) {
			err = StoreFailureError(err, update.OrderID)
		}
		return InboundResult{}, err
	}

	metadata := map[string]any{
		"order_id": update.OrderID,
	}
	confirmation := BuildOrderConfirmation(update, outcome.Order, s.ConfirmationSubject())
	if outcome.AlreadyPaid {
		metadata["outcome"] = "already_paid"
		metadata["already_paid"] = true
		if !s.confirmationOutstanding(outcome.Order) {
			return InboundResult{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
		}
		notified, err := s.notify(ctx, event, confirmation, fields)
		if err != nil {
			return InboundResult{}, err
		}
		metadata["notified"] = notified
		return InboundResult{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
	}

	notified, err := s.notify(ctx, event, confirmation, fields)
	if err != nil {
		return InboundResult{}, err
	}
	metadata["outcome"] = "paid"
	metadata["notified"] = notified
	return InboundResult{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
}

// notify reports whether the confirmation was delivered. A delivery failure
// only surfaces as an error when notification.fail_on_error is set; the
// caller then answers 500 and the provider redelivery resends it.
func (s *Service) notify(ctx context.Context, event InboundEvent, confirmation OrderConfirmation, fields map[string]any) (bool, error) {
	var sendErr error
	if s.notifier == nil {
		sendErr = InternalError("core: notifier is not configured", nil)
	} else {
		sendErr = s.notifier.SendOrderConfirmation(ctx, confirmation)
	}
	if sendErr == nil {
		s.recordConfirmation(ctx, confirmation.OrderID, fields)
		return true, nil
	}

	logFields := cloneFields(fields)
	logFields["error"] = sendErr.Error()
	logFields["text_code"] = ErrorNotificationFailure
	if !s.config.Notification.FailOnError {
		s.deferConfirmation(ctx, event, confirmation, logFields)
		return false, nil
	}
	// Without a recorder a redelivery sees an already paid order and cannot
	// tell the email never left, so the retry queue has to carry it.
	if _, ok := s.orderStore.(ConfirmationRecorder); !ok {
		s.deferConfirmation(ctx, event, confirmation, logFields)
	}
	return false, NotificationFailureError(sendErr, confirmation.OrderID)
}

func (s *Service) deferConfirmation(ctx context.Context, event InboundEvent, confirmation OrderConfirmation, logFields map[string]any) {
	if s.retryEnqueuer == nil {
		s.telemetry.log(ctx, "warn", "order confirmation not delivered", logFields)
		return
	}
	if err := s.retryEnqueuer.Enqueue(ctx, NotificationRetryMessage(confirmation, event.ID)); err != nil {
		logFields["enqueue_error"] = err.Error()
		s.telemetry.log(ctx, "error", "order confirmation retry enqueue failed", logFields)
		return
	}
	logFields["job_id"] = NotificationRetryJobID
	s.telemetry.log(ctx, "warn", "order confirmation deferred for retry", logFields)
}

// confirmationOutstanding reports whether a paid order still owes its
// confirmation. Stores that do not record deliveries never owe one.
func (s *Service) confirmationOutstanding(order Order) bool {
	if _, ok := s.orderStore.(ConfirmationRecorder); !ok {
		return false
	}
	return order.ConfirmationSentAt == nil
}

func (s *Service) recordConfirmation(ctx context.Context, orderID string, fields map[string]any) {
	recorder, ok := s.orderStore.(ConfirmationRecorder)
	if !ok {
		return
	}
	if err := recorder.MarkConfirmationSent(ctx, orderID, s.now()); err != nil {
		logFields := cloneFields(fields)
		logFields["error"] = err.Error()
		s.telemetry.log(ctx, "warn", "order confirmation delivery not recorded", logFields)
	}
}

// ConfirmationSubject is the configured subject, falling back to the default.
func (s *Service) ConfirmationSubject() string {
	if s == nil || strings.TrimSpace(s.config.Notification.Subject) == "" {
		return DefaultConfig().Notification.Subject
	}
	return s.config.Notification.Subject
}
