package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/ratelimit"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultWebhookPath = "/api/webhooks"
	HealthPath         = "/healthz"
)

// ClientLimiter is the throttling surface the router consults before a
// webhook request reaches the processor.
type ClientLimiter interface {
	Allow(ctx context.Context, clientKey string) error
}

type RouterOption func(*routerConfig)

type routerConfig struct {
	logger          core.Logger
	metricsRecorder core.MetricsRecorder
	limiter         ClientLimiter
	counters        func() core.CounterSnapshot
}

func WithLogger(logger core.Logger) RouterOption {
	return func(cfg *routerConfig) {
		cfg.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) RouterOption {
	return func(cfg *routerConfig) {
		cfg.metricsRecorder = recorder
		if snapshotter, ok := recorder.(interface{ Counters() core.CounterSnapshot }); ok {
			cfg.counters = snapshotter.Counters
		}
	}
}

func WithClientLimiter(limiter ClientLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.limiter = limiter
	}
}

// NewRouter mounts the webhook endpoint for providerID at cfg.Path along with
// the health probe. When cfg.RateLimit is enabled and no limiter was given, an
// in-process limiter is built from it. Clients are keyed by socket address
// unless cfg.TrustProxyHeaders is set.
func NewRouter(processor WebhookProcessor, providerID string, cfg core.HTTPConfig, opts ...RouterOption) (*chi.Mux, error) {
	if processor == nil {
		return nil, core.BadInputError("transport: webhook processor is required", nil)
	}
	options := routerConfig{
		logger:          glog.Nop(),
		metricsRecorder: core.NopMetricsRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.limiter == nil && cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewClientLimiter(cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		options.limiter = limiter
	}

	handler := NewWebhookHandler(processor, providerID)
	handler.Logger = glog.Ensure(options.logger)
	handler.MetricsRecorder = options.metricsRecorder
	if cfg.MaxBodyBytes > 0 {
		handler.MaxBodyBytes = cfg.MaxBodyBytes
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultWebhookPath
	}

	router := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		router.Use(middleware.RealIP)
	}
	router.Use(middleware.Recoverer)
	router.Get(HealthPath, healthHandler(options.counters))
	router.With(throttle(options.limiter, handler.Logger)).Post(path, handler.ServeHTTP)
	return router, nil
}

func throttle(limiter ClientLimiter, logger core.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := limiter.Allow(r.Context(), ClientKey(r))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				err = throttled.ToServiceError()
				if throttled.RetryAfter > 0 {
					w.Header().Set("Retry-After", retryAfterSeconds(throttled.RetryAfter))
				}
			}
			status, body := responseFor(err)
			core.LogWithFields(r.Context(), logger, "warn", "webhook request throttled", map[string]any{
				"remote_addr": ClientKey(r),
				"http_status": status,
				"text_code":   core.ErrorTextCode(err),
				"error":       err.Error(),
			})
			_ = writeJSON(w, status, body)
		})
	}
}

func healthHandler(counters func() core.CounterSnapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"ok": true}
		if counters != nil {
			body["counters"] = counters()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func retryAfterSeconds(delay time.Duration) string {
	seconds := int64(delay / time.Second)
	if delay%time.Second != 0 {
		seconds++
	}
	return strconv.FormatInt(seconds, 10)
}
