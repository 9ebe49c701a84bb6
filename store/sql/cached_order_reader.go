package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const orderCacheKeyPrefix = "go-checkout::order::v1"

// CachedOrderReader serves order reads through go-repository-cache and
// evicts the entry whenever a payment update goes through it.
type CachedOrderReader struct {
	base  OrderRepository
	cache repositorycache.CacheService
}

// OrderRepository is the read/write surface the cache wraps.
type OrderRepository interface {
	core.OrderStore
	core.OrderReader
	core.ConfirmationRecorder
}

func NewCachedOrderReader(base OrderRepository, cacheService repositorycache.CacheService) (*CachedOrderReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base order repository is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: order cache service is required")
	}
	return &CachedOrderReader{base: base, cache: cacheService}, nil
}

// OrderCacheKey returns go-checkout::order::v1::<order_id> with the id
// URL-path escaped.
func OrderCacheKey(orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", core.BadInputError("sqlstore: order id is required", nil)
	}
	return orderCacheKeyPrefix + "::" + url.PathEscape(orderID), nil
}

func (r *CachedOrderReader) Get(ctx context.Context, orderID string) (core.Order, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.Order{}, fmt.Errorf("sqlstore: cached order reader is not configured")
	}
	cacheKey, err := OrderCacheKey(orderID)
	if err != nil {
		return core.Order{}, err
	}
	order, err := repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (core.Order, error) {
		return r.base.Get(ctx, strings.TrimSpace(orderID))
	})
	if err != nil {
		return core.Order{}, err
	}
	return cloneOrder(order), nil
}

func (r *CachedOrderReader) UpdateOrderOnPayment(ctx context.Context, update core.PaymentUpdate) (core.PaymentOutcome, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.PaymentOutcome{}, fmt.Errorf("sqlstore: cached order reader is not configured")
	}
	outcome, err := r.base.UpdateOrderOnPayment(ctx, update)
	if err != nil {
		return core.PaymentOutcome{}, err
	}
	if outcome.AlreadyPaid {
		return outcome, nil
	}
	cacheKey, keyErr := OrderCacheKey(update.OrderID)
	if keyErr != nil {
		return outcome, nil
	}
	// The payment is committed; an eviction failure only leaves a stale read.
	_ = r.cache.Delete(ctx, cacheKey)
	return outcome, nil
}

func (r *CachedOrderReader) MarkConfirmationSent(ctx context.Context, orderID string, sentAt time.Time) error {
	if r == nil || r.base == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached order reader is not configured")
	}
	if err := r.base.MarkConfirmationSent(ctx, orderID, sentAt); err != nil {
		return err
	}
	if cacheKey, err := OrderCacheKey(orderID); err == nil {
		_ = r.cache.Delete(ctx, cacheKey)
	}
	return nil
}

func cloneOrder(order core.Order) core.Order {
	cloned := order
	if order.PaidAt != nil {
		value := *order.PaidAt
		cloned.PaidAt = &value
	}
	if order.ShippingAddress != nil {
		value := *order.ShippingAddress
		cloned.ShippingAddress = &value
	}
	if order.BillingAddress != nil {
		value := *order.BillingAddress
		cloned.BillingAddress = &value
	}
	if order.ConfirmationSentAt != nil {
		value := *order.ConfirmationSentAt
		cloned.ConfirmationSentAt = &value
	}
	return cloned
}
