package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"halaqa-points-api/internal/bootstrap"
	"halaqa-points-api/internal/cache"
	"halaqa-points-api/internal/config"
	"halaqa-points-api/internal/handler"
	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/middleware"
	"halaqa-points-api/internal/router"
	"halaqa-points-api/internal/service"
	"halaqa-points-api/internal/store"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("[Main] %v", err)
	}
	logger.SetDebug(cfg.App.Debug)
	logger.Info("[Main] Starting %s v%s (%s)", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	// Ledger repository
	ledgerRepo, err := bootstrap.OpenLedgerRepository(cfg.LedgerDB)
	if err != nil {
		logger.Fatal("[Main] %v", err)
	}
	defer ledgerRepo.Close()

	// Profile directory (MySQL, optional)
	profileRepo, mysqlDB, err := bootstrap.OpenProfileDirectory(cfg.Database)
	if err != nil {
		logger.Fatal("[Main] %v", err)
	}
	if mysqlDB != nil {
		defer mysqlDB.Close()
	}

	// Redis carries sessions, the cross-instance change feed and, optionally, the cache
	redisClient, err := cache.NewRedisClient(cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		logger.Warn("[Main] Redis unavailable, running single-instance without session tokens: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var profileCache cache.Cache
	if cfg.Cache.Type == "redis" && redisClient != nil {
		profileCache = cache.NewRedisCache(redisClient, "")
	} else {
		profileCache = cache.NewMemoryCache()
	}
	defer profileCache.Close()

	// Store and change feed
	feed := store.NewFeed()
	var redisFeed *store.RedisFeed
	var publisher store.Publisher
	if redisClient != nil {
		redisFeed = store.NewRedisFeed(redisClient, feed, cfg.Ledger.FeedChannel)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisFeed.Start(ctx)
		cancel()
		if err != nil {
			logger.Warn("[Main] Redis change feed disabled: %v", err)
			redisFeed = nil
		} else {
			publisher = redisFeed
			defer redisFeed.Close()
		}
	}
	ledgerStore := store.New(ledgerRepo, feed, bootstrap.StoreConfig(cfg.Ledger, publisher))

	// Services
	profiles := service.NewProfileService(profileRepo, profileCache, cfg.Cache.TTL)
	leaderboard := service.NewLeaderboard(ledgerStore, profiles, cfg.Ledger.LeaderboardSize)

	var repair *service.RepairScheduler
	if cfg.Ledger.RepairInterval > 0 {
		repair = service.NewRepairScheduler(ledgerStore, service.RepairConfig{Interval: cfg.Ledger.RepairInterval})
		repair.Start()
		defer repair.Stop()
	}

	var tokenService *service.TokenService
	if redisClient != nil {
		tokenService = service.NewTokenService(redisClient)
	}

	// Handlers
	checks := []handler.ReadinessCheck{{
		Name: "ledger_db",
		Check: func(ctx context.Context) error {
			_, err := ledgerRepo.GetStats(ctx)
			return err
		},
	}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: pingRedis(redisClient)})
	}
	if mysqlDB != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "profiles_db", Check: mysqlDB.PingContext})
	}

	healthHandler := handler.New(cfg.App.Name, cfg.App.Version, checks...)
	ledgerHandler := handler.NewLedgerHandler(ledgerStore, middleware.ContextAuth{})
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboard)
	adminHandler := handler.NewAdminHandler(ledgerRepo, feed, profileCache, repair, cfg.LedgerDB.Type)

	var authHandler *handler.AuthHandler
	authCfg := middleware.AuthConfig{APIKeys: cfg.App.APIKeys}
	if tokenService != nil {
		authHandler = handler.NewAuthHandler(tokenService, profiles)
		authCfg.Tokens = tokenService
	}

	r := router.New(router.Config{
		Handler:            healthHandler,
		LedgerHandler:      ledgerHandler,
		LeaderboardHandler: leaderboardHandler,
		AdminHandler:       adminHandler,
		AuthHandler:        authHandler,
		AuthMiddleware:     middleware.NewAuthMiddleware(authCfg),
	})

	// Event streams run until their request context ends; cancel them all on shutdown.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(stopStreams)

	go func() {
		logger.Info("[Main] Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("[Main] Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[Main] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("[Main] Server shutdown error: %v", err)
	}
	logger.Info("[Main] Server stopped")
}

func pingRedis(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
