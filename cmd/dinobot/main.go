package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/nidhogg/dinobot/internal/api"
	"github.com/nidhogg/dinobot/internal/config"
	"github.com/nidhogg/dinobot/internal/digestcache"
	"github.com/nidhogg/dinobot/internal/imagematch"
	"github.com/nidhogg/dinobot/internal/provider"
	pgstore "github.com/nidhogg/dinobot/internal/store"
	"github.com/nidhogg/dinobot/internal/tutor"
)

// chatProviderID makes the configured chat provider the router default and
// returns it. An unregistered id yields "" so the tutor follows whatever
// default the router already has.
func chatProviderID(router *provider.Router, id string, logger *zap.Logger) string {
	if id == "" {
		return ""
	}
	if _, ok := router.GetProvider(id); !ok {
		logger.Warn("chat provider not registered, using the default provider",
			zap.String("provider", id), zap.String("default", router.DefaultID()))
		return ""
	}
	router.SetDefault(id)
	return id
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	switch level {
	case "production", "info", "warn", "error":
		zc := zap.NewProductionConfig()
		if lvl, lerr := zap.ParseAtomicLevel(level); lerr == nil {
			zc.Level = lvl
		}
		logger, err = zc.Build()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/dinobot.json"
	}
	cfg, cfgErr := config.Load(cfgPath)
	defaulted := errors.Is(cfgErr, fs.ErrNotExist)
	if defaulted {
		cfg, cfgErr = config.Default(), nil
	}
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", cfgPath, cfgErr)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting DinoBot...", zap.String("config", cfgPath))
	if defaulted {
		logger.Warn("config file not found, using defaults", zap.String("path", cfgPath))
	}

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Extra: pc.Extra, Timeout: pc.Timeout(),
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	chatProvider := chatProviderID(router, cfg.Chat.Provider, logger)
	if router.DefaultID() == "" {
		logger.Warn("no completion provider configured, chat will fail")
	}

	dinoTutor := tutor.New(router, tutor.Config{
		Provider:        chatProvider,
		Model:           cfg.Chat.Model,
		MaxTokens:       cfg.Chat.MaxTokens,
		Temperature:     *cfg.Chat.Temperature,
		Stream:          *cfg.Chat.Stream,
		Timeout:         cfg.Chat.Timeout(),
		BreakerFailures: cfg.Chat.BreakerFailures,
		BreakerCooldown: cfg.Chat.BreakerCooldown(),

		RequestsPerMinute: cfg.Chat.RequestsPerMinute,
	}, logger)

	ctx := context.Background()

	// Initialize PostgreSQL upload ledger
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without upload ledger", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, cfg.Database.Postgres.MigrationsDir); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
		}
	}

	// Initialize Redis digest cache
	var cache *digestcache.Cache
	if cfg.Database.Redis.URL != "" {
		c, rErr := digestcache.New(ctx, cfg.Database.Redis.URL, cfg.Database.Redis.DigestTTL(), logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, hashing catalog files on every search", zap.Error(rErr))
		} else {
			cache = c
		}
	}

	var matcherCache imagematch.DigestCache
	if cache != nil {
		matcherCache = cache
	}
	var ledger api.UploadLedger
	if pgStore != nil {
		ledger = pgStore
	}

	// Build HTTP handler
	handler := api.NewHandler(api.Options{
		CatalogPath:         cfg.Catalog.Path,
		PublicDir:           cfg.Catalog.PublicDir,
		MaxUploadBytes:      cfg.Catalog.MaxUploadBytes,
		UploadRatePerMinute: *cfg.Server.UploadRatePerMinute,
	},
		imagematch.NewUploadStore(cfg.Catalog.UploadsDir, cfg.Catalog.UploadsURL, logger),
		imagematch.NewMatcher(cfg.Catalog.PublicDir, matcherCache, logger),
		dinoTutor, ledger, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler.Router(), "dinobot"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("DinoBot listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down DinoBot...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if cache != nil {
		cache.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
}
