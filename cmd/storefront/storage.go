package main

import (
	"context"
	"fmt"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// openRepository connects the configured state backend. SQL backends are
// migrated before use.
func openRepository(ctx context.Context, cfg *config.Config) (repository.RecordRepository, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, state is lost on restart")
		return repository.NewMemoryRepository(), nil
	case config.StorageSQLite, config.StoragePostgres:
		repo, err := openSQL(cfg)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return repo, nil
	case config.StorageMongo:
		return repository.OpenMongoRepository(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.StateRedisAddr})
		repo := repository.NewRedisRepository(client)
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.StateRedisAddr, err)
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

func openSQL(cfg *config.Config) (*repository.SQLRepository, error) {
	if cfg.Storage == config.StorageSQLite {
		return repository.NewSQLiteRepository(cfg.SQLitePath)
	}
	return repository.NewPostgresRepository(cfg.PostgresCredentials())
}

func migrate(*cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage != config.StorageSQLite && cfg.Storage != config.StoragePostgres {
		log.WithField("storage", cfg.Storage).Info("storage has no migrations")
		return nil
	}

	repo, err := openSQL(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.WithField("storage", cfg.Storage).Info("migrations completed successfully")
	return nil
}
