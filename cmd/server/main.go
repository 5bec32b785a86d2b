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

	"github.com/diintechteam9/cab-tracker/internal/config"
	"github.com/diintechteam9/cab-tracker/internal/handlers"
	"github.com/diintechteam9/cab-tracker/internal/metrics"
	"github.com/diintechteam9/cab-tracker/internal/middleware"
	"github.com/diintechteam9/cab-tracker/internal/repositories/interfaces"
	"github.com/diintechteam9/cab-tracker/internal/repositories/memory"
	"github.com/diintechteam9/cab-tracker/internal/repositories/mongodb"
	"github.com/diintechteam9/cab-tracker/internal/services"
	"github.com/diintechteam9/cab-tracker/pkg/broker"
	"github.com/diintechteam9/cab-tracker/pkg/cache"
	"github.com/diintechteam9/cab-tracker/pkg/clock"
	"github.com/diintechteam9/cab-tracker/pkg/database"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
	"github.com/diintechteam9/cab-tracker/pkg/maps"
	"github.com/diintechteam9/cab-tracker/pkg/sms"
	"github.com/diintechteam9/cab-tracker/pkg/websocket"
	"github.com/diintechteam9/cab-tracker/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.WithError(err).Fatal("Server stopped")
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	clk := clock.Real()

	// Redis backs the trip read cache, last samples, routes and the redis broker
	var (
		redisCache   *cache.RedisCache
		cacheService services.CacheService
	)
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rc.Close()
		redisCache = rc
		cacheService = services.NewCacheService(rc, appLogger, cfg.Redis.KeyPrefix, services.CacheTTLs{
			Trip:   cfg.Redis.TripTTL,
			Sample: cfg.Redis.SampleTTL,
			Route:  cfg.Redis.RouteTTL,
		})
	}

	healthHandlerChecks := map[string]handlers.Pinger{}
	if redisCache != nil {
		healthHandlerChecks["redis"] = redisCache
	}

	tripRepo, closeRepo, mongoDB, err := newTripRepository(ctx, cfg, cacheService, appLogger)
	if err != nil {
		return err
	}
	defer closeRepo()
	if mongoDB != nil {
		healthHandlerChecks["mongo"] = mongoDB
	}

	var (
		geocoder   maps.Geocoder
		directions maps.DirectionsProvider
	)
	if cfg.Maps.Enabled() {
		provider, err := maps.NewProvider(maps.ProviderConfig{
			Provider: cfg.Maps.Provider,
			APIKey:   cfg.Maps.APIKey(),
			BaseURL:  cfg.Maps.Mapbox.BaseURL,
			Region:   cfg.Maps.Region,
			Language: cfg.Maps.Language,
		})
		if err != nil {
			return fmt.Errorf("failed to create maps provider: %w", err)
		}
		geocoder, directions = provider, provider
	} else {
		appLogger.Warn("No maps provider configured; address lookup and routes are disabled")
	}

	smsProvider, err := sms.NewProvider(ctx, sms.ProviderConfig{
		Provider:         cfg.SMS.Provider,
		TwilioAccountSID: cfg.SMS.Twilio.AccountSID,
		TwilioAuthToken:  cfg.SMS.Twilio.AuthToken,
		FromNumber:       cfg.SMS.Twilio.FromNumber,
		AWSRegion:        cfg.SMS.AWS.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create sms provider: %w", err)
	}
	notificationService := services.NewNotificationService(smsProvider, cfg.SMS.CountryCode, appLogger)

	tripService := services.NewTripService(tripRepo, geocoder, notificationService, clk, appLogger, services.TripServiceConfig{
		Links: services.LinkConfig{
			Secret:  cfg.Tracking.LinkSecret,
			TTL:     cfg.Tracking.LinkTTL,
			BaseURL: cfg.Tracking.PublicBaseURL,
		},
		Metrics: collector,
	})

	var routeStore services.RouteStore
	if cacheService != nil {
		routeStore = cacheService
	}
	routeService := services.NewRouteService(directions, routeStore, clk, appLogger, collector)

	relay, err := broker.New(*cfg.Broker, redisCache, collector, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}
	if relay != nil {
		defer relay.Close()
	}

	var sampleStore websocket.SampleStore
	if cacheService != nil {
		sampleStore = cacheService
	}
	hub := websocket.NewHub(websocket.HubConfig{
		Gatekeeper: tripService,
		Store:      sampleStore,
		Broker:     relay,
		Metrics:    collector,
		Clock:      clk,
		Logger:     appLogger,
	})
	tripService.AddListener(hub)
	tripService.AddListener(routeService)

	healthHandler := handlers.NewHealthHandler(hub, cfg.App.Version)
	for name, p := range healthHandlerChecks {
		healthHandler.AddCheck(name, p)
	}

	router, err := newRouter(cfg, appLogger, routes.Handlers{
		Trips:  handlers.NewTripHandler(tripService, routeService, cfg.Tracking.EnforceLinks, appLogger),
		Health: healthHandler,
		WebSocket: websocket.NewHandler(hub, websocket.HandlerConfig{
			LinkSecret:      cfg.Tracking.LinkSecret,
			EnforceLinks:    cfg.Tracking.EnforceLinks,
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			SendBuffer:      cfg.WebSocket.SendBuffer,
			AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		}, appLogger),
		Metrics: collector.Handler(),
	})
	if err != nil {
		return err
	}

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		appLogger.WithFields(map[string]interface{}{
			"addr":     srv.Addr,
			"instance": hub.InstanceID(),
			"broker":   cfg.Broker.Driver,
			"database": cfg.Database.Driver,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Info("Shutdown signal received")
	case runErr = <-serveErr:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	<-hubDone

	appLogger.Info("Server stopped")
	return runErr
}

// newTripRepository opens the configured trip store. The returned MongoDB is
// nil for the memory driver.
func newTripRepository(ctx context.Context, cfg *config.Config, cacheService services.CacheService, appLogger *logger.Logger) (interfaces.TripRepository, func(), *database.MongoDB, error) {
	if cfg.Database.Driver == "memory" {
		appLogger.Warn("Using in-memory trip store; trips are lost on restart")
		return memory.NewTripRepository(), func() {}, nil, nil
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			appLogger.WithError(err).Warn("MongoDB disconnect failed")
		}
	}

	if cfg.Database.RunMigrations {
		if err := database.NewMigrator(db.Database, appLogger).Up(ctx); err != nil {
			closeDB()
			return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return mongodb.NewTripRepository(db.Database, cacheService), closeDB, db, nil
}

func newRouter(cfg *config.Config, appLogger *logger.Logger, h routes.Handlers) (*gin.Engine, error) {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.App.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Global middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.LoggingMiddleware(appLogger))
	router.Use(middleware.CORSMiddleware(cfg.App.CORSOrigins))

	routes.Setup(router, h, cfg.Tracking.LinkSecret)
	return router, nil
}
