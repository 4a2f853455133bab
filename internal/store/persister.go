package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/repository"
)

// SchemaVersion is written into every saved record.
const SchemaVersion = 1

type envelope[T any] struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	State   T         `json:"state"`
}

// Persister loads and saves one named record holding a state of type T.
type Persister[T any] struct {
	repo repository.RecordRepository
	name string
}

func NewPersister[T any](repo repository.RecordRepository, name string) *Persister[T] {
	return &Persister[T]{repo: repo, name: name}
}

// Load returns the saved state. found is false when the record was never written.
func (p *Persister[T]) Load(ctx context.Context) (state T, found bool, err error) {
	data, err := p.repo.Get(ctx, p.name)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return state, false, nil
	}
	if err != nil {
		return state, false, fmt.Errorf("%w: load %s: %w", ErrPersistence, p.name, err)
	}

	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return state, false, fmt.Errorf("%w: decode %s: %w", ErrPersistence, p.name, err)
	}
	if env.Version > SchemaVersion {
		return state, false, fmt.Errorf("%w: %s has version %d", ErrUnsupportedVersion, p.name, env.Version)
	}
	return env.State, true, nil
}

func (p *Persister[T]) Save(ctx context.Context, state T) error {
	data, err := json.Marshal(envelope[T]{
		Version: SchemaVersion,
		SavedAt: time.Now().UTC(),
		State:   state,
	})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, p.name, err)
	}
	if err := p.repo.Put(ctx, p.name, data); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrPersistence, p.name, err)
	}
	return nil
}
