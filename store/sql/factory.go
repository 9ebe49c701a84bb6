package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	orderStore        *OrderStore
	webhookEventStore *WebhookEventStore
	cachedOrders      *CachedOrderReader
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as a
// go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (*RepositoryFactory, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.orderStore != nil && f.webhookEventStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

// WithOrderCache fronts the order store with a read-through cache.
func (f *RepositoryFactory) WithOrderCache(cacheService repositorycache.CacheService) error {
	if f == nil || f.orderStore == nil {
		return fmt.Errorf("sqlstore: repository factory stores are not built")
	}
	cached, err := NewCachedOrderReader(f.orderStore, cacheService)
	if err != nil {
		return err
	}
	f.cachedOrders = cached
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) OrderStore() *OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

// Orders returns the cached repository when one is configured and the plain
// store otherwise.
func (f *RepositoryFactory) Orders() OrderRepository {
	if f == nil {
		return nil
	}
	if f.cachedOrders != nil {
		return f.cachedOrders
	}
	if f.orderStore == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) WebhookEventStore() *WebhookEventStore {
	if f == nil {
		return nil
	}
	return f.webhookEventStore
}

func (f *RepositoryFactory) initStores() error {
	orderStore, err := NewOrderStore(f.db)
	if err != nil {
		return err
	}
	f.orderStore = orderStore
	webhookEventStore, err := NewWebhookEventStore(f.db)
	if err != nil {
		return err
	}
	f.webhookEventStore = webhookEventStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
