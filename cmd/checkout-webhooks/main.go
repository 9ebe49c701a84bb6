package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	checkout "github.com/goliatone/go-checkout"
	"github.com/goliatone/go-checkout/adapters/gocommand"
	"github.com/goliatone/go-checkout/adapters/gologger"
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/notify"
	"github.com/goliatone/go-checkout/providers/stripe"
	sqlstore "github.com/goliatone/go-checkout/store/sql"
	"github.com/goliatone/go-checkout/transport"
	command "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newConsoleLogger(os.Stdout, os.Getenv("CHECKOUT_LOG_LEVEL"))
	if err := run(ctx, logger); err != nil {
		logger.Error("checkout webhooks stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger glog.Logger) error {
	provider := glog.ProviderFromLogger(logger)
	metrics := core.NewInMemoryMetricsRecorder()

	configProvider := core.NewCfgxConfigProvider(core.NewEnvConfigLoader())
	cfg, err := configProvider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	client, err := openPersistence(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}
	cacheService, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
	if err != nil {
		return fmt.Errorf("order cache: %w", err)
	}
	if err := stores.WithOrderCache(cacheService); err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg.Notification, gologger.Component(provider, logger, "notify"))
	if err != nil {
		return err
	}
	retryQueue := notify.NewMemoryQueue()

	svc, err := checkout.NewService(cfg,
		checkout.WithLoggerProvider(provider),
		checkout.WithMetricsRecorder(metrics),
		checkout.WithConfigProvider(configProvider),
		checkout.WithOrderStore(stores.Orders()),
		checkout.WithNotifier(notifier),
		checkout.WithNotificationRetryEnqueuer(retryQueue),
	)
	if err != nil {
		return err
	}

	processor, err := checkout.NewStripeProcessor(svc.Config(), stores.WebhookEventStore(), nil, svc)
	if err != nil {
		return err
	}
	processor.Logger = gologger.Component(provider, logger, "webhooks")
	processor.MetricsRecorder = metrics

	facade, err := checkout.NewFacade(processor,
		checkout.WithFacadeNotifier(notifier),
		checkout.WithOrderReader(stores.Orders()),
		checkout.WithOrderLister(stores.OrderStore()),
	)
	if err != nil {
		return err
	}
	subscriptions, err := registerHandlers(facade)
	if err != nil {
		return err
	}
	defer gocommand.Unsubscribe(subscriptions)

	worker := notify.NewRetryWorker(
		retryQueue,
		notifier,
		notify.NewObservingHook(gologger.Component(provider, logger, "retry"), metrics),
	)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notification retry worker stopped", "error", err)
		}
	}()

	router, err := transport.NewRouter(facade.Processor(), stripe.ProviderID, svc.Config().HTTP,
		transport.WithLogger(gologger.Component(provider, logger, "http")),
		transport.WithMetricsRecorder(metrics),
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              svc.Config().HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("checkout webhooks listening", "address", server.Addr, "path", svc.Config().HTTP.Path)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("checkout webhooks shutting down")
	return server.Shutdown(shutdownCtx)
}

func registerHandlers(facade *checkout.Facade) ([]commanddispatcher.Subscription, error) {
	commands := facade.Commands()
	queries := facade.Queries()
	return gocommand.RegisterCheckoutHandlers(
		gocommand.NewRegistryAdapter(command.NewRegistry()),
		gocommand.CheckoutHandlers{
			ProcessWebhook:        commands.ProcessWebhook,
			SendConfirmation:      commands.SendConfirmation,
			GetOrder:              queries.GetOrder,
			ListOrders:            queries.ListOrders,
			ListWebhookDeliveries: queries.ListWebhookDeliveries,
		},
	)
}

func buildNotifier(cfg core.NotificationConfig, logger glog.Logger) (core.Notifier, error) {
	if cfg.Driver == core.NotificationDriverLog {
		return notify.NewLogNotifier(logger), nil
	}
	return notify.NewResendNotifierFromAPIKey(cfg.APIKey, cfg.From, notify.WithResendLogger(logger))
}
