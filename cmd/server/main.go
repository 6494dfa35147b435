package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/smartcity/transitweather/internal/cache"
	"github.com/smartcity/transitweather/internal/config"
	"github.com/smartcity/transitweather/internal/delivery/http"
	"github.com/smartcity/transitweather/internal/logging"
	"github.com/smartcity/transitweather/internal/repository/postgres"
	"github.com/smartcity/transitweather/internal/scheduler"
	"github.com/smartcity/transitweather/internal/service"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg, "transit-weather-api")
	if envErr != nil {
		log.Info("no .env file found, using system environment")
	}

	// Database connection
	repo := connectRepository(cfg, log)

	// Dependency Injection: Services
	metrics := service.NewMetrics()
	retrier := service.NewRetrier(cfg.RetryMax, cfg.RetryDelay, log, metrics)
	ridershipSvc := service.NewRidershipService(service.RidershipConfig{
		BaseURL:         cfg.RidershipURL,
		AppToken:        cfg.SocrataAppToken,
		Timeout:         cfg.RequestTimeout,
		PolitenessDelay: cfg.PolitenessDelay,
	}, retrier, log, metrics)
	weatherSvc := service.NewWeatherService(service.WeatherConfig{
		BaseURL:  cfg.WeatherURL,
		Timezone: cfg.WeatherTimezone,
		Timeout:  cfg.RequestTimeout,
	}, retrier, log, metrics)
	extractor := service.NewExtractionService(ridershipSvc, weatherSvc, log, metrics)
	transformer := service.NewTransformService(service.NewQualityValidator(log), service.NewFeatureDeriver(log), log)
	datasetSvc := service.NewDatasetService(
		extractor,
		transformer,
		cache.NewParquetCache(cfg.CacheFile, cfg.ParquetCompression, log),
		service.ExtractOptions{
			Start:      cfg.StartDate,
			End:        cfg.EndDate,
			MaxRecords: cfg.MaxRecords,
			Latitude:   cfg.Latitude,
			Longitude:  cfg.Longitude,
		},
		log,
		metrics,
	)

	refresher := scheduler.New(cfg.RefreshInterval, func(ctx context.Context) error {
		_, err := datasetSvc.Refresh(ctx)
		return err
	}, log)
	if err := refresher.Start(); err != nil {
		log.Error("failed to schedule refresh", "error", err)
		os.Exit(1)
	}
	defer refresher.Stop()

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Transit Weather API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Routes
	http.SetupRoutes(app, http.NewHandler(datasetSvc, repo, log), metrics)

	// Warm the dataset so the first request does not pay for extraction
	go func() {
		if _, err := datasetSvc.Load(context.Background()); err != nil {
			log.Warn("initial dataset load failed", "error", err)
		}
	}()

	// Graceful shutdown
	go func() {
		log.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server exited gracefully")
}

// connectRepository returns the Postgres repository, or an in-memory one when
// no database is configured or reachable
func connectRepository(cfg *config.Config, log *slog.Logger) service.AnalyticsRepository {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, history is kept in memory")
		return postgres.NewMemoryRepository()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		log.Warn("could not connect to database, history is kept in memory", "error", err)
		if pool != nil {
			pool.Close()
		}
		return postgres.NewMemoryRepository()
	}

	log.Info("connected to PostgreSQL")
	return postgres.NewPostgresRepository(pool, cfg.AnalyticsTable)
}
