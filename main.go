package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GollyTicker/PluralSync/internal/api"
	"github.com/GollyTicker/PluralSync/internal/config"
	"github.com/GollyTicker/PluralSync/internal/db"
	"github.com/GollyTicker/PluralSync/internal/fronting"
	"github.com/GollyTicker/PluralSync/internal/history"
	"github.com/GollyTicker/PluralSync/internal/logging"
	"github.com/GollyTicker/PluralSync/internal/platforms"
	"github.com/GollyTicker/PluralSync/internal/redis"
	"github.com/GollyTicker/PluralSync/internal/updater"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service", "service", "pluralsync", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	users := db.NewUserStore(logger, dbConn, cfg.EncryptionKey)
	historyStore := history.NewPostgresStore(logger, dbConn)

	var publisher *platforms.WebsitePublisher
	if cfg.WebsiteBucket != "" {
		publisher, err = platforms.NewWebsitePublisher(platforms.WebsiteConfig{
			Endpoint:  cfg.WebsiteEndpoint,
			Bucket:    cfg.WebsiteBucket,
			PublicURL: cfg.WebsitePublicURL,
			Region:    cfg.WebsiteRegion,
		})
		if err != nil {
			logger.Error("website_publisher_init_failed", "error", err)
			os.Exit(1)
		}
		logger.Info("website_publisher_initialized", "bucket", cfg.WebsiteBucket)
	} else {
		logger.Info("website_publisher_disabled")
	}

	platformDeps := platforms.Deps{
		Log:                     logger,
		HTTP:                    platforms.NewHTTPClient(),
		CookieSaver:             users,
		Publisher:               publisher,
		PageCache:               redisClient,
		DiscordStatusMessageURL: cfg.DiscordStatusMessageURL,
		StatusMessageAvailable:  cfg.DiscordStatusMessageAvailable,
	}

	metrics := updater.NewMetrics(prometheus.DefaultRegisterer)
	procDeps := updater.ProcessorDeps{
		Log:     logger,
		History: historyStore,
		Metrics: metrics,
		NewAdapters: func() []updater.Adapter {
			supported := platforms.SupportedPlatforms(platformDeps)
			adapters := make([]updater.Adapter, 0, len(supported))
			for _, p := range supported {
				adapters = append(adapters, platforms.NewUpdater(p, platformDeps))
			}
			return adapters
		},
		AdapterTimeout: cfg.AdapterTimeout,
	}

	manager := updater.NewManager(logger)
	spClient := fronting.NewSimplyPluralClient(logger, cfg.SimplyPluralAPIURL, cfg.SimplyPluralSocketURL)
	service := updater.NewService(logger, users, manager, spClient, procDeps, cfg.RefreshInterval)

	// boot one change processor per known user
	if err := service.StartAll(ctx); err != nil {
		logger.Error("updater_boot_failed", "error", err)
		os.Exit(1)
	}
	go service.RunRefreshLoop(ctx)

	srv := api.NewServer(logger, dbConn, redisClient, users, historyStore, manager, service, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_server_ready", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// stop the refresh loop and socket listeners before the processors
	cancel()
	service.StopAll()
	logger.Info("updaters_stopped")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	} else {
		logger.Info("redis_closed")
	}

	dbConn.Close()
	logger.Info("db_closed")
}
