package config

import (
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/repository"
	"github.com/kelseyhightower/envconfig"
)

// Prefix of every environment variable, e.g. STOREFRONT_HTTP_PORT.
const Prefix = "STOREFRONT"

// Storage backends for client state.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageRedis    = "redis"
)

type Config struct {
	HTTPPort           string        `envconfig:"HTTP_PORT" default:"8080"`
	GRPCPort           string        `envconfig:"GRPC_PORT" default:"50051"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MaxRequestBodySize int64         `envconfig:"MAX_REQUEST_BODY_SIZE" default:"1048576"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`

	CatalogURL             string        `envconfig:"CATALOG_URL" default:"https://fakestoreapi.com"`
	CatalogTimeout         time.Duration `envconfig:"CATALOG_TIMEOUT" default:"10s"`
	CatalogCacheTTL        time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"15m"`
	CatalogBreakerFailures uint32        `envconfig:"CATALOG_BREAKER_FAILURES" default:"5"`
	// RedisAddr enables the catalog cache when set.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Storage          string `envconfig:"STORAGE" default:"sqlite"`
	SQLitePath       string `envconfig:"SQLITE_PATH" default:"storefront.db"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"storefront"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"storefront"`
	MongoURI         string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase    string `envconfig:"MONGO_DATABASE" default:"storefront"`
	// StateRedisAddr is the Redis holding client state when Storage is redis.
	StateRedisAddr string `envconfig:"STATE_REDIS_ADDR" default:"localhost:6379"`

	// KafkaBrokers enables order events when set.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"order-placed"`

	PaymentDelay          time.Duration `envconfig:"PAYMENT_DELAY" default:"2s"`
	PaymentTimeout        time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
	PaymentDeclinePercent int           `envconfig:"PAYMENT_DECLINE_PERCENT" default:"0"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageMongo, StorageRedis:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.PaymentDeclinePercent < 0 || c.PaymentDeclinePercent > 100 {
		return fmt.Errorf("payment decline percent %d out of range 0-100", c.PaymentDeclinePercent)
	}
	if c.PaymentTimeout <= c.PaymentDelay {
		return fmt.Errorf("payment timeout %s must exceed payment delay %s", c.PaymentTimeout, c.PaymentDelay)
	}
	return nil
}

func (c *Config) PostgresCredentials() *repository.Credentials {
	return &repository.Credentials{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		DBName:   c.PostgresDB,
	}
}

// Usage prints the recognised environment variables.
func Usage() error {
	var cfg Config
	return envconfig.Usage(Prefix, &cfg)
}
