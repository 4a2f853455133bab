package store

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/shopspring/decimal"
)

var errDiskFull = errors.New("disk full")

// flakyRepository wraps a memory repository and fails writes while failPut is set.
type flakyRepository struct {
	*repository.MemoryRepository
	mu      sync.Mutex
	failPut bool
	puts    int
}

func newFlakyRepository() *flakyRepository {
	return &flakyRepository{MemoryRepository: repository.NewMemoryRepository()}
}

func (f *flakyRepository) Put(ctx context.Context, name string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return errDiskFull
	}
	f.puts++
	return f.MemoryRepository.Put(ctx, name, value)
}

func (f *flakyRepository) setFailPut(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut = fail
}

func product(id int64, price string) domain.Product {
	return domain.Product{
		ID:       id,
		Title:    "product",
		Price:    decimal.RequireFromString(price),
		Category: "electronics",
	}
}
