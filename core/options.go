package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	orderStore      OrderStore
	notifier        Notifier
	retryEnqueuer   JobEnqueuer
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithOrderStore(store OrderStore) Option {
	return func(b *serviceBuilder) {
		b.orderStore = store
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

// WithNotificationRetryEnqueuer enables deferred redelivery of confirmations
// that failed after the order was already committed as paid.
func WithNotificationRetryEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.retryEnqueuer = enqueuer
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("checkout", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := changedLayer(configToLayerMap(loaded, true), defaultLayer)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap flattens cfg into a go-options layer. With includeZero
// unset only non-zero values are carried, so a sparse runtime Config never
// masks a lower layer. A runtime bool can therefore only switch a flag on.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	stripe := map[string]any{}
	putString(stripe, "webhook_secret", cfg.Stripe.WebhookSecret, includeZero)
	putInt(stripe, "tolerance_seconds", int64(cfg.Stripe.ToleranceSeconds), includeZero)
	putBool(stripe, "ignore_api_version_mismatch", cfg.Stripe.IgnoreAPIVersionMismatch, includeZero)
	putSection(layer, "stripe", stripe)

	notification := map[string]any{}
	putString(notification, "driver", cfg.Notification.Driver, includeZero)
	putString(notification, "api_key", cfg.Notification.APIKey, includeZero)
	putString(notification, "from", cfg.Notification.From, includeZero)
	putString(notification, "subject", cfg.Notification.Subject, includeZero)
	putBool(notification, "fail_on_error", cfg.Notification.FailOnError, includeZero)
	putSection(layer, "notification", notification)

	store := map[string]any{}
	putString(store, "driver", cfg.Store.Driver, includeZero)
	putString(store, "dsn", cfg.Store.DSN, includeZero)
	putBool(store, "debug", cfg.Store.Debug, includeZero)
	putSection(layer, "store", store)

	rateLimit := map[string]any{}
	putBool(rateLimit, "enabled", cfg.HTTP.RateLimit.Enabled, includeZero)
	putInt(rateLimit, "limit", cfg.HTTP.RateLimit.Limit, includeZero)
	putInt(rateLimit, "period_seconds", int64(cfg.HTTP.RateLimit.PeriodSeconds), includeZero)

	httpLayer := map[string]any{}
	putString(httpLayer, "address", cfg.HTTP.Address, includeZero)
	putString(httpLayer, "path", cfg.HTTP.Path, includeZero)
	putInt(httpLayer, "max_body_bytes", cfg.HTTP.MaxBodyBytes, includeZero)
	putBool(httpLayer, "trust_proxy_headers", cfg.HTTP.TrustProxyHeaders, includeZero)
	putSection(httpLayer, "rate_limit", rateLimit)
	putSection(layer, "http", httpLayer)
	return layer
}

// changedLayer keeps the entries of layer that differ from base. Providers
// build the loaded Config on top of the defaults, so a difference is an
// explicit setting, including an explicit false or zero.
func changedLayer(layer, base map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range layer {
		section, isSection := value.(map[string]any)
		if isSection {
			baseSection, _ := base[key].(map[string]any)
			putSection(out, key, changedLayer(section, baseSection))
			continue
		}
		if baseValue, ok := base[key]; ok && baseValue == value {
			continue
		}
		out[key] = value
	}
	return out
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

func putInt(target map[string]any, key string, value int64, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putBool(target map[string]any, key string, value bool, includeZero bool) {
	if includeZero || value {
		target[key] = value
	}
}

func putSection(target map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		target[key] = section
	}
}
