// Package catalog reads products and categories from the remote REST catalog.
package catalog

import (
	"context"
	"errors"

	"goflare.io/storefront/models"
)

var (
	// ErrNotFound means the catalog answered but has no such product.
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable covers transport failures, bad responses and an open breaker.
	ErrUnavailable = errors.New("catalog unavailable")
)

type Repository interface {
	GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListProductsByCategory(ctx context.Context, category string) ([]*models.Product, error)
}
