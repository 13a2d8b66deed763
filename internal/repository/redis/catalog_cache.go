package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"priceradar/business/match"
	"priceradar/domain"
	"priceradar/pkg/logger"
)

// CatalogCache is a read-through cache in front of the catalog repository.
// The catalog only changes when the mirror importer runs, so a short TTL is
// enough to keep a sync run from hammering postgres with one lookup per
// offer. Cache failures are logged and fall through to the inner reader;
// redis being down never fails a run.
type CatalogCache struct {
	client   *redis.Client
	catalog  match.CatalogReader
	mappings match.MappingReader
	ttl      time.Duration
}

func NewCatalogCache(client *redis.Client, catalog match.CatalogReader, mappings match.MappingReader, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &CatalogCache{
		client:   client,
		catalog:  catalog,
		mappings: mappings,
		ttl:      ttl,
	}
}

func (c *CatalogCache) VariantByID(ctx context.Context, variantID uint64) (*domain.CatalogVariant, error) {
	key := fmt.Sprintf("catalog:variant:%d", variantID)

	var cached *domain.CatalogVariant
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	v, err := c.catalog.VariantByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, v)

	return v, nil
}

func (c *CatalogCache) VariantsBySKU(ctx context.Context, sku string) ([]domain.CatalogVariant, error) {
	key := fmt.Sprintf("catalog:sku:%s", sku)

	var cached []domain.CatalogVariant
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	variants, err := c.catalog.VariantsBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, variants)

	return variants, nil
}

func (c *CatalogCache) VariantsByTitlePrefix(ctx context.Context, prefix string) ([]domain.CatalogVariant, error) {
	key := fmt.Sprintf("catalog:title:%s", prefix)

	var cached []domain.CatalogVariant
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	variants, err := c.catalog.VariantsByTitlePrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, variants)

	return variants, nil
}

func (c *CatalogCache) Lookup(ctx context.Context, competitor, sourceSKU string) (*domain.VariantMapping, error) {
	key := fmt.Sprintf("catalog:mapping:%s:%s", competitor, sourceSKU)

	var cached *domain.VariantMapping
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	m, err := c.mappings.Lookup(ctx, competitor, sourceSKU)
	if err != nil {
		return nil, err
	}
	// nil marshals to "null" and round-trips back to nil, so misses in the
	// mapping table are cached too
	c.set(ctx, key, m)

	return m, nil
}

// get reports whether the key was found and decoded; any error counts as a
// miss.
func (c *CatalogCache) get(ctx context.Context, key string, dest interface{}) bool {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		logger.Warn("catalog cache read failed", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		logger.Warn("catalog cache entry undecodable", "key", key, "error", err)
		return false
	}

	return true
}

func (c *CatalogCache) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("catalog cache marshal failed", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached catalog entry; called after a mirror import.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "catalog:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan catalog cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to drop catalog cache keys: %w", err)
	}

	return nil
}
