package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goflare.io/storefront/cache"
	"goflare.io/storefront/models"
)

var _ Repository = (*cachedRepository)(nil)

type cachedRepository struct {
	next   Repository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRepository reads through cache before calling next. Errors from
// next are never cached.
func NewCachedRepository(next Repository, c cache.Cache, ttl time.Duration, logger *zap.Logger) Repository {
	return &cachedRepository{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *cachedRepository) GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error) {
	key := fmt.Sprintf("product:%s", id)
	var product models.Product
	if r.lookup(ctx, key, &product) {
		return &product, nil
	}

	p, err := r.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, p)
	return p, nil
}

func (r *cachedRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	const key = "products"
	var products []*models.Product
	if r.lookup(ctx, key, &products) {
		return products, nil
	}

	products, err := r.next.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, products)
	return products, nil
}

func (r *cachedRepository) ListCategories(ctx context.Context) ([]string, error) {
	const key = "categories"
	var categories []string
	if r.lookup(ctx, key, &categories) {
		return categories, nil
	}

	categories, err := r.next.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, categories)
	return categories, nil
}

func (r *cachedRepository) ListProductsByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	key := fmt.Sprintf("products:category:%s", NormalizeCategory(category))
	var products []*models.Product
	if r.lookup(ctx, key, &products) {
		return products, nil
	}

	products, err := r.next.ListProductsByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, products)
	return products, nil
}

func (r *cachedRepository) lookup(ctx context.Context, key string, dest any) bool {
	found, err := r.cache.Get(ctx, key, dest)
	if err != nil {
		r.logger.Warn("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (r *cachedRepository) store(ctx context.Context, key string, value any) {
	if err := r.cache.Set(ctx, key, value, r.ttl); err != nil {
		r.logger.Warn("Failed to set cache", zap.String("key", key), zap.Error(err))
	}
}
