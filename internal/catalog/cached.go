package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	log "github.com/sirupsen/logrus"
)

// CachedCatalog serves catalog reads from a cache and falls back to the
// wrapped catalog on a miss. Cache errors never fail a read.
type CachedCatalog struct {
	next  Catalog
	cache cache.CatalogCache
}

func NewCachedCatalog(next Catalog, c cache.CatalogCache) *CachedCatalog {
	return &CachedCatalog{next: next, cache: c}
}

func (c *CachedCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return c.list(ctx, "all", c.next.ListProducts)
}

func (c *CachedCatalog) ListProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return c.list(ctx, "category:"+category, func(ctx context.Context) ([]domain.Product, error) {
		return c.next.ListProductsByCategory(ctx, category)
	})
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := c.cache.GetProduct(ctx, id)
	if err == nil {
		return product, nil
	}
	logCacheError(ctx, err)

	product, err = c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, func(ctx context.Context) error { return c.cache.SetProduct(ctx, product) })
	return product, nil
}

func (c *CachedCatalog) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := c.cache.GetCategories(ctx)
	if err == nil {
		return categories, nil
	}
	logCacheError(ctx, err)

	categories, err = c.next.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, func(ctx context.Context) error { return c.cache.SetCategories(ctx, categories) })
	return categories, nil
}

func (c *CachedCatalog) list(ctx context.Context, key string, load func(context.Context) ([]domain.Product, error)) ([]domain.Product, error) {
	products, err := c.cache.GetProducts(ctx, key)
	if err == nil {
		return products, nil
	}
	logCacheError(ctx, err)

	products, err = load(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, func(ctx context.Context) error { return c.cache.SetProducts(ctx, key, products) })
	return products, nil
}

func (c *CachedCatalog) store(ctx context.Context, set func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := set(ctx); err != nil {
		log.WithContext(ctx).WithError(err).Warn("catalog cache set failed")
	}
}

func logCacheError(ctx context.Context, err error) {
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.WithContext(ctx).WithError(err).Warn("catalog cache get failed")
	}
}
