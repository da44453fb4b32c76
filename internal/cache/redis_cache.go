package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"vansales/backend/internal/domain"
)

type RedisCatalogCache struct {
	client *redis.Client
}

func NewRedisCatalogCache(addr string, password string, db int) *RedisCatalogCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCatalogCache{client: client}
}

func (c *RedisCatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCatalogCache) Close() error {
	return c.client.Close()
}

func (c *RedisCatalogCache) GetItems(ctx context.Context, key string) ([]domain.Item, bool, error) {
	val, err := c.client.Get(ctx, "items:"+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []domain.Item
	if err := json.Unmarshal([]byte(val), &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (c *RedisCatalogCache) SetItems(ctx context.Context, key string, items []domain.Item, ttl time.Duration) error {
	if items == nil {
		return nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "items:"+key, payload, ttl).Err()
}

func (c *RedisCatalogCache) GetCustomers(ctx context.Context, key string) ([]domain.Customer, bool, error) {
	val, err := c.client.Get(ctx, "customers:"+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var customers []domain.Customer
	if err := json.Unmarshal([]byte(val), &customers); err != nil {
		return nil, false, err
	}
	return customers, true, nil
}

func (c *RedisCatalogCache) SetCustomers(ctx context.Context, key string, customers []domain.Customer, ttl time.Duration) error {
	if customers == nil {
		return nil
	}
	payload, err := json.Marshal(customers)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "customers:"+key, payload, ttl).Err()
}
