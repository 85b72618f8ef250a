package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-workflow/internal/auth"
	"order-workflow/internal/authz"
	"order-workflow/internal/handler"
	"order-workflow/internal/infrastructure"
	"order-workflow/internal/repository"
	"order-workflow/internal/service"
	"order-workflow/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := infrastructure.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	logger, err := infrastructure.NewLogger(cfg.Server.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	router, cleanup, err := buildRouter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting pedidos API", zap.String("addr", server.Addr), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		logger.Fatal("HTTP server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		return
	}
	logger.Info("HTTP server stopped gracefully")
}

// buildRouter wires the store, adapters and services. cleanup releases every adapter opened.
func buildRouter(ctx context.Context, cfg *infrastructure.Config, logger *zap.Logger) (*gin.Engine, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("failed to close adapter", zap.Error(err))
			}
		}
	}
	fail := func(err error) (*gin.Engine, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	engine := workflow.NewEngine(workflow.WithPhoneRegion(cfg.Orders.PhoneRegion))

	var store repository.Store
	if cfg.UseMemoryStore() {
		logger.Warn("using in-memory store, data is lost on restart")
		store = repository.NewMemoryStore()
	} else {
		db, err := infrastructure.ConnectDatabase(cfg.Database, !cfg.IsProduction())
		if err != nil {
			return fail(err)
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, sqlDB.Close)
		}
		if err := infrastructure.MigrateAllSchemas(db); err != nil {
			return fail(fmt.Errorf("failed to migrate database schemas: %w", err))
		}
		store = repository.NewGormStore(db)
	}

	var revoker service.TokenRevoker
	if cfg.Redis.Addr != "" {
		client, err := infrastructure.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, client.Close)
		revoker = infrastructure.NewRedisTokenRevoker(client)
	} else {
		revoker = infrastructure.NewMemoryTokenRevoker()
	}

	var documents interface {
		service.DocumentStore
		Close() error
	}
	if cfg.Storage.GCSBucket != "" {
		gcs, err := infrastructure.NewGCSDocumentStore(ctx, cfg.Storage)
		if err != nil {
			return fail(err)
		}
		documents = gcs
	} else {
		local, err := infrastructure.NewLocalDocumentStore(cfg.Storage.Dir)
		if err != nil {
			return fail(err)
		}
		documents = local
	}
	closers = append(closers, documents.Close)

	var publisher interface {
		service.EventPublisher
		Close() error
	}
	if cfg.Events.ProjectID != "" {
		ps, err := infrastructure.NewPubSubPublisher(ctx, cfg.Events, cfg.Storage.GCSCredentialsJSON)
		if err != nil {
			return fail(err)
		}
		publisher = ps
	} else {
		publisher = infrastructure.NewLogPublisher(logger)
	}
	closers = append(closers, publisher.Close)

	userService := service.NewUserService(store, engine)
	orderService := service.NewOrderService(store, engine, publisher, logger)
	activityService := service.NewActivityLogService(store)
	authService := auth.NewService(auth.Config{
		Secret: []byte(cfg.JWT.Secret),
		TTL:    time.Duration(cfg.JWT.ExpirationHours) * time.Hour,
	}, userService, activityService, revoker, engine)

	var microsoft *auth.MicrosoftOAuth
	if cfg.Microsoft.Enabled() {
		microsoft = auth.NewMicrosoftOAuth(auth.MicrosoftConfig{
			TenantID:     cfg.Microsoft.TenantID,
			ClientID:     cfg.Microsoft.ClientID,
			ClientSecret: cfg.Microsoft.ClientSecret,
			RedirectURI:  cfg.Microsoft.RedirectURI,
		})
	} else {
		logger.Info("microsoft sign-in disabled")
	}

	if cfg.Server.SeedData {
		seeder := infrastructure.NewSeedDataManager(userService, orderService, logger)
		if err := seeder.SeedAll(ctx); err != nil {
			return fail(fmt.Errorf("failed to setup seed data: %w", err))
		}
	}

	authorizer, err := authz.New()
	if err != nil {
		return fail(err)
	}

	router := handler.NewRouter(handler.Dependencies{
		Auth:        authService,
		Microsoft:   microsoft,
		Authorizer:  authorizer,
		Orders:      orderService,
		Products:    service.NewProductService(store, engine),
		Users:       userService,
		Activity:    activityService,
		Documents:   service.NewDocumentService(store, documents, engine, publisher, logger),
		Export:      service.NewExportService(store),
		Logger:      logger,
		FrontendURL: cfg.Server.FrontendURL,
		Production:  cfg.IsProduction(),
	})
	return router, cleanup, nil
}
