package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"moodtunes/internal/config"
	"moodtunes/internal/emotion"
	"moodtunes/internal/handlers"
	"moodtunes/internal/history"
	"moodtunes/internal/jobs"
	"moodtunes/internal/logging"
	"moodtunes/internal/middleware"
	"moodtunes/internal/services"
)

const (
	snapshotKeyPrefix = "moodtunes:history:"
	snapshotTimeout   = 5 * time.Second
	requestTimeout    = 2 * time.Minute
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting MoodTunes Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, History scope: %s)", cfg.Port, cfg.HistoryScope)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	clock := clockwork.NewRealClock()
	metrics := services.InitMetrics()

	// Mood keyword table, hot-reloaded when loaded from a file
	keywords := services.DefaultKeywordTable()
	if cfg.MoodKeywordsFile != "" {
		table, err := services.LoadKeywordTable(cfg.MoodKeywordsFile)
		if err != nil {
			log.Fatalf("❌ Failed to load mood keywords from %s: %v", cfg.MoodKeywordsFile, err)
		}
		keywords = table
		log.Printf("✅ Mood keywords loaded from %s", cfg.MoodKeywordsFile)

		go func() {
			if err := services.WatchKeywordFile(ctx, cfg.MoodKeywordsFile, keywords); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("⚠️  Keyword file watcher stopped: %v", err)
			}
		}()
	}

	// Search pipeline
	var robots *services.RobotsChecker
	if cfg.RespectRobots {
		robots = services.NewRobotsChecker("moodtunes", &http.Client{Timeout: cfg.SearchTimeout})
		log.Println("🤖 robots.txt checks enabled for search requests")
	}
	searchClient := services.NewSearchClient(services.SearchClientConfig{
		BaseURL: cfg.SearchBaseURL,
		Timeout: cfg.SearchTimeout,
		Robots:  robots,
	})
	fetcher := services.NewResultFetcher(searchClient, services.NewRateLimiter(cfg.SearchRatePerSec), metrics)
	orchestrator := services.NewOrchestrator(
		services.NewQueryBuilder(keywords),
		fetcher,
		services.WithRetryPolicy(services.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts, BaseDelay: cfg.RetryBaseDelay}),
		services.WithClock(clock),
	)

	classifier := emotion.NewService(emotion.Config{
		BaseURL: cfg.ClassifierURL,
		Timeout: cfg.ClassifierTimeout,
	})
	metrics.SetClassifierAvailable(classifier.Available())

	registry, err := history.NewRegistry(cfg.HistoryScope, cfg.HistoryConfig(), cfg.SessionIdleTTL, clock)
	if err != nil {
		log.Fatalf("❌ Failed to create history registry: %v", err)
	}

	// Background jobs
	jobScheduler := jobs.NewJobScheduler(clock)
	if cfg.ClassifierURL != "" {
		jobScheduler.Register("classifier_health", jobs.NewClassifierHealthChecker(
			classifier, metrics, cfg.ClassifierCheckInterval, cfg.ClassifierTimeout, clock,
		))
	}

	// Optional Redis snapshots so history survives restarts
	var redisService *services.RedisService
	var snapshots *history.SnapshotStore
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, history will not be persisted: %v", err)
		} else {
			snapshots = history.NewSnapshotStore(redisService.Client(), snapshotKeyPrefix, cfg.HistoryMaxAge*2)
			registry.SetRestorer(snapshots.Restorer(snapshotTimeout))
			jobScheduler.Register("history_snapshot", jobs.NewHistorySnapshotJob(registry, snapshots, cfg.HistorySnapshotInterval, clock))
			log.Printf("💾 History snapshots enabled (every %v)", cfg.HistorySnapshotInterval)
		}
	}

	jobScheduler.Start()

	recommendationService := services.NewRecommendationService(registry, orchestrator, classifier, metrics, cfg.DefaultMaxResults)
	musicHandler := handlers.NewMusicHandler(recommendationService, requestTimeout)
	healthHandler := handlers.NewHealthHandler(classifier, registry)

	app := fiber.New(fiber.Config{
		AppName:      "MoodTunes v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second, // a full recommendation can retry many searches
		IdleTimeout:  120 * time.Second,
		BodyLimit:    15 * 1024 * 1024, // camera frames arrive as base64 data URLs
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	}))

	prometheus := fiberprometheus.New("moodtunes")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := cfg.AllowedOrigins
	if allowedOrigins == "" {
		if cfg.Environment == "development" {
			allowedOrigins = "http://localhost:5173,http://localhost:3000"
		} else {
			allowedOrigins = "*"
		}
	}
	log.Printf("🔒 CORS allowed origins: %s", allowedOrigins)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, " + middleware.SessionHeader,
		ExposeHeaders:    middleware.SessionHeader,
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: !strings.Contains(allowedOrigins, "*"),
	}))

	rateLimits := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  Rate limits: global %d/min, music %d/min, detect %d/min",
		rateLimits.GlobalAPIMax, rateLimits.MusicMax, rateLimits.DetectMax)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api", middleware.GlobalAPIRateLimiter(rateLimits), middleware.Session())
	api.Post("/music", middleware.MusicRateLimiter(rateLimits), musicHandler.GetMusic)
	api.Post("/mood/detect", middleware.DetectRateLimiter(rateLimits), musicHandler.DetectMood)
	api.Get("/status", musicHandler.GetStatus)
	api.Post("/session/clear", musicHandler.ClearSession)
	api.Get("/moods/:mood/keywords", musicHandler.GetKeywords)

	// Handle graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		jobScheduler.Stop()
		stop()

		if snapshots != nil {
			saveCtx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
			if saved, err := snapshots.SaveAll(saveCtx, registry); err != nil {
				log.Printf("⚠️ Final history snapshot incomplete (%d saved): %v", saved, err)
			} else {
				log.Printf("💾 Final history snapshot saved (%d stores)", saved)
			}
			cancel()
		}
		if redisService != nil {
			if err := redisService.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}
	}()

	log.Printf("🎵 MoodTunes listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	<-shutdownDone
}
