package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const (
	defaultStorePrefix = "go-checkout"
	defaultPeriod      = time.Minute
	defaultLimit       = 100
)

type ThrottledError struct {
	ClientKey  string
	Limit      int64
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: client %q exceeded %d requests, retry after %s",
		strings.TrimSpace(e.ClientKey),
		e.Limit,
		e.RetryAfter,
	)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"client_key": strings.TrimSpace(e.ClientKey),
		"limit":      e.Limit,
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	rich, _ := core.RateLimitedError(e.Error(), metadata).(*goerrors.Error)
	return rich
}

// ClientLimiter applies a fixed window per client key on top of a
// ulule/limiter store.
type ClientLimiter struct {
	limiter *limiter.Limiter
	Now     func() time.Time
}

// NewClientLimiter builds an in-process limiter from cfg. Zero values fall
// back to 100 requests per minute.
func NewClientLimiter(cfg core.RateLimitConfig) (*ClientLimiter, error) {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          defaultStorePrefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
	return NewClientLimiterWithStore(store, RateFromConfig(cfg))
}

func NewClientLimiterWithStore(store limiter.Store, rate limiter.Rate) (*ClientLimiter, error) {
	if store == nil {
		return nil, core.BadInputError("ratelimit: limiter store is required", nil)
	}
	if rate.Limit <= 0 || rate.Period <= 0 {
		return nil, core.BadInputError("ratelimit: rate limit and period must be positive", map[string]any{
			"limit":  rate.Limit,
			"period": rate.Period.String(),
		})
	}
	return &ClientLimiter{
		limiter: limiter.New(store, rate),
		Now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func RateFromConfig(cfg core.RateLimitConfig) limiter.Rate {
	rate := limiter.Rate{Limit: cfg.Limit, Period: time.Duration(cfg.PeriodSeconds) * time.Second}
	if rate.Limit <= 0 {
		rate.Limit = defaultLimit
	}
	if rate.Period <= 0 {
		rate.Period = defaultPeriod
	}
	return rate
}

// Allow counts one request for clientKey and returns ThrottledError once the
// window is exhausted.
func (l *ClientLimiter) Allow(ctx context.Context, clientKey string) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "unknown"
	}
	window, err := l.limiter.Get(ctx, clientKey)
	if err != nil {
		return core.WrapError(
			err,
			goerrors.CategoryInternal,
			"ratelimit: limiter store failed",
			http.StatusInternalServerError,
			core.ErrorInternal,
			map[string]any{"client_key": clientKey},
		)
	}
	if !window.Reached {
		return nil
	}
	retryAfter := time.Unix(window.Reset, 0).Sub(l.now())
	if retryAfter < 0 {
		retryAfter = 0
	}
	return ThrottledError{ClientKey: clientKey, Limit: window.Limit, RetryAfter: retryAfter}
}

func (l *ClientLimiter) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}
