package cmd

import (
	"context"
	"fmt"
	"time"

	"refwallet/config"
	"refwallet/database"
	"refwallet/events"
	"refwallet/infrastructure"
	"refwallet/observability"
	"refwallet/repository"
	"refwallet/server"
	"refwallet/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	cfg.ConfigureLogging()

	log.WithField("environment", cfg.Environment).Info("Starting refwallet...")

	// Initialize database connection
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	eventBus := events.NewBus()

	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics.Attach(eventBus)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down metrics provider")
		}
	}()

	// Optional code cache
	var codeCache service.CodeCache
	if cfg.RedisAddr != "" {
		rdb := infrastructure.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()

		cache := infrastructure.NewRedisCodeCache(rdb, cfg.CodeCacheTTL)
		if err := cache.Ping(ctx); err != nil {
			// The store answers every lookup the cache would
			log.WithError(err).Warn("Redis unavailable, running without code cache")
		} else {
			cache.Attach(eventBus)
			codeCache = cache
			log.WithField("addr", cfg.RedisAddr).Info("Code cache enabled")
		}
	}

	// Optional event forwarding
	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Error("Failed to close NATS connection")
			}
		}()

		if err := natsClient.EnsureStream(infrastructure.StreamName, infrastructure.AllSubjects()); err != nil {
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		infrastructure.NewNATSEventPublisher(natsClient).Attach(eventBus)
		log.Info("Event forwarding to NATS enabled")
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize services
	userService := service.NewUserService(uowFactory, cfg)
	referralService := service.NewReferralService(uowFactory, service.NewCodeGenerator(cfg.CodeLength), cfg)
	walletService := service.NewWalletService(uowFactory, cfg)
	queryService := service.NewQueryService(uowFactory, codeCache, cfg)

	srv := server.New(cfg, server.Dependencies{
		Users:     userService,
		Referrals: referralService,
		Wallets:   walletService,
		Queries:   queryService,
		Metrics:   metrics,
		Store:     db,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown did not complete")
	}

	log.Info("Shutdown completed")
	return nil
}
