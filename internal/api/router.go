package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mindprint-labs/mindprint/internal/api/handlers"
	mw "github.com/mindprint-labs/mindprint/internal/api/middleware"
	"github.com/mindprint-labs/mindprint/internal/buildconfig"
	"github.com/mindprint-labs/mindprint/internal/cache"
	"github.com/mindprint-labs/mindprint/internal/config"
	"github.com/mindprint-labs/mindprint/internal/domain"
	"github.com/mindprint-labs/mindprint/internal/embedding"
	"github.com/mindprint-labs/mindprint/internal/llm"
	"github.com/mindprint-labs/mindprint/internal/retry"
	"github.com/mindprint-labs/mindprint/internal/service"
	"github.com/mindprint-labs/mindprint/internal/store"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Sweeper      *service.SweeperService
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	analysisStore := store.NewAnalysisStore(db)

	// External clients via provider factory
	llmProvider := config.LLMProvider()
	embeddingProvider := config.EmbeddingProvider()

	llmClient, err := llm.NewClient(llmProvider, config.LLMAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed", zap.String("provider", llmProvider), zap.Error(err))
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider))
	}

	embeddingClient, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("Embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("Embedding client initialized", zap.String("provider", embeddingProvider))
	}

	// Services
	analysisCache := cache.New(config.CacheTTL())
	fetcher := service.NewFetcher(analysisStore, analysisCache, logger)
	fetcher.SetRetryPolicy(retryPolicyFromConfig())
	fetcher.SetPageSize(config.FetchPageSize())
	fetcher.SetMaxPages(config.FetchMaxPages())
	historySvc := service.NewHistoryService(fetcher, config.RefreshCooldown(), logger)
	generationSvc := service.NewGenerationService(analysisStore, llmClient, embeddingClient, historySvc, logger)
	sweeperSvc := service.NewSweeperService(analysisCache, logger)

	// Handlers
	analysisHandler := handlers.NewAnalysisHandler(historySvc, generationSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Sweeper:   sweeperSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Shared-link view (no auth; the analysis id is the capability)
	r.Get("/v1/shared/{id}", analysisHandler.Shared)

	// Authenticated routes
	r.Route("/v1/analyses", func(r chi.Router) {
		r.Use(mw.OwnerAuth)

		r.Post("/", analysisHandler.Create)
		r.Get("/", analysisHandler.List)
		r.Get("/current", analysisHandler.Current)
		r.Post("/refresh", analysisHandler.Refresh)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", analysisHandler.GetByID)
			r.Post("/select", analysisHandler.Select)
			r.Get("/related", analysisHandler.Related)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage lifecycle
// themselves.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func retryPolicyFromConfig() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = config.FetchMaxAttempts()
	return p
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.AnalysisStore   = (*store.AnalysisStore)(nil)
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
	_ domain.LLMClient       = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient       = (*llm.AnthropicClient)(nil)
	_ domain.LLMClient       = (*llm.GeminiClient)(nil)
	_ domain.LLMClient       = (*llm.MockClient)(nil)
)
