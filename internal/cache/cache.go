package cache

import (
	"context"
	"time"

	"vansales/backend/internal/domain"
)

// CatalogCache fronts item and customer lookups from the field devices,
// which hammer search while building a document.
type CatalogCache interface {
	GetItems(ctx context.Context, key string) ([]domain.Item, bool, error)
	SetItems(ctx context.Context, key string, items []domain.Item, ttl time.Duration) error
	GetCustomers(ctx context.Context, key string) ([]domain.Customer, bool, error)
	SetCustomers(ctx context.Context, key string, customers []domain.Customer, ttl time.Duration) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) GetItems(_ context.Context, _ string) ([]domain.Item, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) SetItems(_ context.Context, _ string, _ []domain.Item, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) GetCustomers(_ context.Context, _ string) ([]domain.Customer, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) SetCustomers(_ context.Context, _ string, _ []domain.Customer, _ time.Duration) error {
	return nil
}
