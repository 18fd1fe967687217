package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisbric/orderenrich/internal/config"
	"github.com/wisbric/orderenrich/internal/platform"
	"github.com/wisbric/orderenrich/internal/telemetry"
	"github.com/wisbric/orderenrich/pkg/cache"
	"github.com/wisbric/orderenrich/pkg/consumer"
	"github.com/wisbric/orderenrich/pkg/enrichment"
	"github.com/wisbric/orderenrich/pkg/failureledger"
	"github.com/wisbric/orderenrich/pkg/lock"
	"github.com/wisbric/orderenrich/pkg/orderstore"
	"github.com/wisbric/orderenrich/pkg/pipeline"
	"github.com/wisbric/orderenrich/pkg/refclient"
)

// Run is the application entry point: it brings infrastructure online,
// wires the enrichment pipeline, and runs the bus consumer until ctx is
// canceled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting orderenrich",
		"topic", cfg.Topic,
		"consumerGroup", cfg.ConsumerGroup,
		"concurrency", cfg.ConsumerConcurrency,
	)

	db, err := platform.NewPostgresPool(ctx, cfg.StoreURI)
	if err != nil {
		return fmt.Errorf("connecting to order store: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL(), logger)
	if err != nil {
		return fmt.Errorf("connecting to cache: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing cache connection", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.StoreURI, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running order store migrations: %w", err)
	}
	logger.Info("order store migrations applied")

	_ = telemetry.NewMetricsRegistry(logger, telemetry.All()...)

	productClient := refclient.NewProductClient(cfg.ProductAPIURL)
	customerClient := refclient.NewCustomerClient(cfg.CustomerAPIURL)

	entryCache := cache.New(rdb, logger)
	locks := lock.New(rdb, logger)
	store := orderstore.New(db)
	ledger := failureledger.New(rdb, logger, cfg.MaxRetries, cfg.FailureTTLHours)
	stage := enrichment.New(entryCache, productClient, customerClient, cfg.ProductTTL(), cfg.CustomerTTL())

	pl := pipeline.New(locks, stage, store, logger, cfg.LockTTL())

	bus, err := consumer.New(consumer.Config{
		Brokers:       cfg.BusBootstrapServers,
		Topic:         cfg.Topic,
		ConsumerGroup: cfg.ConsumerGroup,
		Workers:       cfg.ConsumerConcurrency,
	}, pl, ledger, logger)
	if err != nil {
		return fmt.Errorf("creating bus consumer: %w", err)
	}
	defer bus.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- bus.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down consumer")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case <-shutdownCtx.Done():
			return nil
		}
	case err := <-errCh:
		return err
	}
}
