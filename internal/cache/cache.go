package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

// CatalogCache holds catalog responses between calls to the remote catalog.
type CatalogCache interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	SetProduct(ctx context.Context, product *domain.Product) error
	GetProducts(ctx context.Context, list string) ([]domain.Product, error)
	SetProducts(ctx context.Context, list string, products []domain.Product) error
	GetCategories(ctx context.Context) ([]string, error)
	SetCategories(ctx context.Context, categories []string) error
}

var ErrCacheMiss = errors.New("cache miss")
