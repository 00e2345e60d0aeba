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

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/rivalscope/config"
	"github.com/jordanlanch/rivalscope/pkg/ai/agents"
	"github.com/jordanlanch/rivalscope/pkg/ai/llm"
	"github.com/jordanlanch/rivalscope/pkg/api/handlers"
	custommw "github.com/jordanlanch/rivalscope/pkg/api/middleware"
	"github.com/jordanlanch/rivalscope/pkg/auth"
	"github.com/jordanlanch/rivalscope/pkg/cache"
	"github.com/jordanlanch/rivalscope/pkg/competitor"
	"github.com/jordanlanch/rivalscope/pkg/database"
	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/export"
	"github.com/jordanlanch/rivalscope/pkg/jobs"
	"github.com/jordanlanch/rivalscope/pkg/logger"
	"github.com/jordanlanch/rivalscope/pkg/metrics"
	custommiddleware "github.com/jordanlanch/rivalscope/pkg/middleware"
	"github.com/jordanlanch/rivalscope/pkg/scraper"
	"github.com/jordanlanch/rivalscope/pkg/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// pipelineRoutes fetch pages or call the LLM and get a tighter per-user limit
var pipelineRoutes = []string{
	"/api/v1/analyses/:id/scrape",
	"/api/v1/analyses/:id/run",
	"/api/v1/analyses/:id/analyze",
	"/api/v1/competitors/:competitorId/scrape",
	"/api/v1/scrape/preview",
}

func main() {
	// Load configuration
	cfg := config.Load()
	appLog := logger.New(cfg.LogLevel)
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: tracesSampleRate(cfg),
			AttachStacktrace: true,
			BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
				// Tokens never leave the process
				if event.Request != nil {
					delete(event.Request.Headers, "Authorization")
					event.Request.QueryString = ""
				}
				return event
			},
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// Initialize database with SSL configuration
	db, err := database.Open(startCtx, database.Options{
		Driver: cfg.DBDriver,
		URL:    cfg.DatabaseURL,
		Pool:   database.DefaultPoolConfig(),
		SSL: &database.SSLConfig{
			Mode:         cfg.DBSSLMode,
			CertPath:     cfg.DBSSLCertPath,
			KeyPath:      cfg.DBSSLKeyPath,
			RootCertPath: cfg.DBSSLRootCertPath,
		},
	}, appLog)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(startCtx, cfg.RedisURL, appLog)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Scoring engine
	engine, err := newScoringEngine(cfg, appLog)
	if err != nil {
		log.Fatalf("❌ Failed to initialize scoring engine: %v", err)
	}

	// Scrape and analysis pipeline
	pages := scraper.New(scraper.NewFetcher(scraper.FetcherConfig{
		UserAgent:    cfg.ScraperUserAgent,
		Timeout:      cfg.ScraperTimeout,
		MaxBodyBytes: cfg.ScraperMaxBodyBytes,
	}, nil))
	repo := store.New(db)
	competitorService := competitor.NewService(repo, pages, engine, competitor.Config{
		ScrapeConcurrency: cfg.ScrapeConcurrency,
		Logger:            appLog.With("component", "competitor"),
		Observer:          prometheusMetrics,
	})

	reports := export.NewService(competitorService)
	analysisHandler := handlers.NewAnalysisHandler(
		competitorService,
		pages,
		cache.NewPreviewCache(redisClient, cfg.PreviewCacheTTL, prometheusMetrics),
		reports,
		appLog.With("component", "http"),
	)

	// Report archive (optional)
	if cfg.ReportArchiveBucket != "" {
		archive, err := export.NewS3Archive(startCtx, reports, export.ArchiveConfig{
			Bucket:          cfg.ReportArchiveBucket,
			Region:          cfg.ReportArchiveRegion,
			Endpoint:        cfg.ReportArchiveEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Prefix:          cfg.ReportArchivePrefix,
		}, appLog)
		if err != nil {
			log.Fatalf("❌ Failed to initialize report archive: %v", err)
		}
		analysisHandler.WithArchive(archive)
		log.Printf("✅ Report archive enabled (bucket: %s)", cfg.ReportArchiveBucket)
	} else {
		log.Printf("ℹ️  Report archive disabled (no bucket configured)")
	}
	healthHandler := handlers.NewHealthHandler(db, redisClient)
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Initialize rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	pipelineRateLimiter := custommiddleware.NewEndpointRateLimiter()
	for _, route := range pipelineRoutes {
		pipelineRateLimiter.SetEndpointLimit(http.MethodPost, route, cfg.PipelineRateLimitPerMinute, cfg.PipelineRateLimitBurst)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go globalRateLimiter.RunCleanup(bgCtx, 5*time.Minute)
	go pipelineRateLimiter.RunCleanup(bgCtx, 5*time.Minute)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				appLog.Warn("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String(), "error", v.Error)
				return nil
			}
			appLog.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String())
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Recover middleware handles the panic afterwards
		}))
	}

	// Prometheus metrics middleware
	e.Use(prometheusMetrics.Middleware())

	// CORS with restricted origins
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(middleware.Gzip())

	// Global rate limiting
	e.Use(globalRateLimiter.Middleware())

	// Public endpoints
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "RivalScope API",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})
	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(prometheusMetrics.Handler()))

	// API v1 (authenticated, organization bound)
	v1 := e.Group("/api/v1",
		custommw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist),
		custommiddleware.RequireOrganization(),
		pipelineRateLimiter.Middleware(),
	)
	analysisHandler.RegisterRoutes(v1)

	// Background jobs
	cronManager := jobs.NewCronManager(
		jobs.NewStaleRunReaper(repo, cfg.StaleRunAfter, appLog),
		db,
		prometheusMetrics,
		appLog,
	)
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to set up cron jobs: %v", err)
	}
	cronManager.Start()

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 RivalScope API starting on %s", address)
	log.Printf("📝 Log level: %s, LLM provider: %s", cfg.LogLevel, cfg.LLMProvider)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d), pipeline %d req/min (burst: %d)",
		cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst, cfg.PipelineRateLimitPerMinute, cfg.PipelineRateLimitBurst)
	log.Printf("🕷️  Scraper: timeout %s, max body %d bytes, concurrency %d", cfg.ScraperTimeout, cfg.ScraperMaxBodyBytes, cfg.ScrapeConcurrency)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopBackground()
	cronManager.Stop(ctx)
	log.Println("✅ Cron jobs stopped")

	if err := e.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
		return
	}

	log.Println("✅ Server gracefully stopped")
}

// newScoringEngine selects the LLM backend behind the scoring agent
func newScoringEngine(cfg *config.Config, appLog logger.Logger) (domain.ScoringEngine, error) {
	var client llm.LLMClient
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client = llm.NewOpenAIClient(llm.Config{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIModel,
			MaxTokens: cfg.LLMMaxTokens,
		}, nil)
	case "ollama":
		client = llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL:   cfg.OllamaBaseURL,
			Model:     cfg.OllamaModel,
			MaxTokens: cfg.LLMMaxTokens,
		}, nil)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q (want openai or ollama)", cfg.LLMProvider)
	}
	return agents.NewScoringAgent(client, appLog.With("component", "scoring")), nil
}

func tracesSampleRate(cfg *config.Config) float64 {
	if cfg.IsProduction() {
		return 0.2
	}
	return 1.0
}
