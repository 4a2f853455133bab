package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/events"
	grpcserver "github.com/fjod/storefront/internal/grpc"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/shop"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func serve(*cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage, err)
	}
	defer repo.Close()
	log.WithField("storage", cfg.Storage).Info("storage ready")

	products, closeCatalog := newCatalog(cfg)
	defer closeCatalog()

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("failed to flush order events")
		}
	}()

	registry := shop.NewRegistry(shop.Config{
		Repository: repo,
		Gateway: payment.NewSimulator(cfg.PaymentDelay, payment.RandomStatus{
			DeclinePercent: cfg.PaymentDeclinePercent,
		}),
		Publisher:      publisher,
		PaymentTimeout: cfg.PaymentTimeout,
	})

	health := grpcserver.NewHealthServer(repo, 10*time.Second)
	go health.Run(ctx)

	grpcServer := grpcserver.NewServer(health)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		log.Printf("gRPC health server listening on :%s", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("grpc server stopped")
		}
	}()

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.NewRouter(h.RouterConfig{
			Registry:           registry,
			Catalog:            products,
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
			Ready:              repo.Ping,
		}),
		ReadTimeout: 10 * time.Second,
		// checkout waits for the payment simulator
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("storefront API starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down server...")
	health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	grpcServer.GracefulStop()

	log.WithField("clients", registry.Len()).Info("server exited")
	return nil
}

func newCatalog(cfg *config.Config) (catalog.Catalog, func()) {
	client := catalog.NewHTTPClient(catalog.ClientConfig{
		BaseURL:             cfg.CatalogURL,
		Timeout:             cfg.CatalogTimeout,
		ConsecutiveFailures: cfg.CatalogBreakerFailures,
	})
	if cfg.RedisAddr == "" {
		return client, func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	log.WithField("addr", cfg.RedisAddr).Info("catalog cache enabled")
	return catalog.NewCachedCatalog(client, cache.NewRedisCache(rdb, cfg.CatalogCacheTTL)), func() {
		_ = rdb.Close()
	}
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	log.WithFields(log.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
	}).Info("publishing order events")
	return events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
}
