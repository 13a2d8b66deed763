package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"priceradar/app/sync-server/router"
	"priceradar/business/match"
	"priceradar/business/normalize"
	syncService "priceradar/business/sync"
	"priceradar/internal/repository/postgres"
	redisRepo "priceradar/internal/repository/redis"
	"priceradar/internal/rest"
	"priceradar/internal/scheduler"
	"priceradar/internal/source"
	"priceradar/internal/source/greengadgets"
	"priceradar/internal/source/reebelo"
	"priceradar/pkg/config"
	"priceradar/pkg/database"
	redisDB "priceradar/pkg/database/redis"
	"priceradar/pkg/logger"
	"priceradar/pkg/metrics"
)

// schedulerRunner adapts the sync service to the scheduler's interface.
type schedulerRunner struct {
	svc *syncService.Service
}

func (r *schedulerRunner) Run(ctx context.Context, trigger string) error {
	summary, err := r.svc.Run(ctx, trigger)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return fmt.Errorf("sync run %s finished with status %s", summary.ExecutionID, summary.Status)
	}

	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting PriceRadar sync server", "version", cfg.App.Version)

	metrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected successfully")

	// Init repos
	executionRepo := postgres.NewExecutionRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)
	priceRepo := postgres.NewPriceRepository(db, cfg.Sync.BatchSize)

	// Catalog lookups go through redis when it is enabled
	var catalogReader match.CatalogReader = catalogRepo
	var mappingReader match.MappingReader = catalogRepo
	if cfg.Redis.Enabled {
		redisClient, err := redisDB.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		defer redisDB.CloseRedisClient(redisClient)

		cache := redisRepo.NewCatalogCache(redisClient, catalogRepo, catalogRepo, cfg.Redis.CacheTTL)
		catalogReader = cache
		mappingReader = cache
		logger.Info("Catalog cache enabled", "ttl", cfg.Redis.CacheTTL.String())
	}

	// Init source adapters
	vocab := normalize.DefaultVocabulary().Extend(cfg.Sync.ExtraConditions, cfg.Sync.ExtraColors)
	reebeloClient, err := reebelo.NewClient(cfg.Reebelo)
	if err != nil {
		logger.Fatal("Failed to init reebelo adapter", "error", err)
	}
	greenGadgetsClient, err := greengadgets.NewClient(cfg.GreenGadgets, vocab)
	if err != nil {
		logger.Fatal("Failed to init green-gadgets adapter", "error", err)
	}
	adapters := []source.Adapter{reebeloClient, greenGadgetsClient}

	// Init service
	matcher := match.NewMatcher(catalogReader, mappingReader)
	svc := syncService.NewService(adapters, catalogRepo, matcher, executionRepo, priceRepo)

	// Init handler
	syncHandler := rest.NewSyncHandler(svc, executionRepo, priceRepo)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	router.SetupSyncRoutes(api, syncHandler)

	// Scheduled runs
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	sched := scheduler.New(&schedulerRunner{svc: svc}, time.Duration(cfg.Sync.IntervalHours)*time.Hour)
	go sched.Start(schedCtx)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
