// Skin consultation chat server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/skinconsult/internal/api"
	"github.com/ashureev/skinconsult/internal/catalog"
	"github.com/ashureev/skinconsult/internal/config"
	"github.com/ashureev/skinconsult/internal/consult"
	"github.com/ashureev/skinconsult/internal/dialogue"
	"github.com/ashureev/skinconsult/internal/identity"
	"github.com/ashureev/skinconsult/internal/imaging"
	"github.com/ashureev/skinconsult/internal/llm"
	"github.com/ashureev/skinconsult/internal/metrics"
	"github.com/ashureev/skinconsult/internal/middleware"
	"github.com/ashureev/skinconsult/internal/retrieval"
	"github.com/ashureev/skinconsult/internal/session"
	"github.com/ashureev/skinconsult/internal/store"
	"github.com/ashureev/skinconsult/internal/transcript"
	"github.com/ashureev/skinconsult/internal/validation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	products, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Warn("Failed to load product catalog, continuing with an empty catalog", "path", cfg.CatalogPath, "error", err)
		products = catalog.Empty()
	}
	if bad := products.CheckDomain(cfg.ProductDomain); len(bad) > 0 {
		slog.Warn("Catalog entries link outside the shop domain", "products", bad)
	}
	slog.Info("Product catalog loaded", "products", products.Len())

	registry := metrics.NewRegistry()

	completer := newCompleter(cfg, logger)
	retriever := newRetriever(cfg, logger)
	if closer, ok := retriever.(interface{ Close() }); ok {
		defer closer.Close()
	}

	validator := validation.New(products, validation.Config{
		Domain:   cfg.ProductDomain,
		Brand:    cfg.BrandName,
		Denylist: validation.DefaultDenylist,
	})
	repairer := validation.NewRepairer(validator, completer, registry, logger)

	engine := dialogue.NewEngine(dialogue.Deps{
		Catalog:    products,
		Completer:  completer,
		Retriever:  retriever,
		Repairer:   repairer,
		Resolver:   dialogue.NewResolver(cfg.ProductDomain),
		Preprocess: imaging.Preprocess,
		Metrics:    registry,
		Logger:     logger,
	}, dialogue.Config{
		BrandName:       cfg.BrandName,
		ShopURL:         cfg.ProductDomain,
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		TurnTimeout:     cfg.TurnTimeout,
		RetrievalTopK:   cfg.Retrieval.TopK,
	})

	sessions := session.NewRegistry(repo, cfg.Session.TTL, registry, logger)

	transcriptLogger, err := transcript.NewLogger(transcript.Config{
		Enabled:       cfg.Transcript.Enabled,
		Dir:           cfg.Transcript.Dir,
		GlobalEnabled: cfg.Transcript.GlobalEnabled,
		GlobalPath:    cfg.Transcript.GlobalPath,
		QueueSize:     cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcriptLogger.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	snapshots, err := transcript.NewSnapshotFile(cfg.SnapshotExportPath)
	if err != nil {
		slog.Error("Failed to open snapshot export", "error", err)
		os.Exit(1)
	}

	svc := consult.New(consult.Deps{
		Engine:     engine,
		Sessions:   sessions,
		Repo:       repo,
		Transcript: transcriptLogger,
		Snapshots:  snapshots,
		Logger:     logger,
		Channel:    "chat_http",
	})

	// Initialize handlers.
	origins := cfg.AllowedOrigins()
	chatHandler := api.NewChatHandler(svc, api.ChatConfig{
		RateLimitRequests:  cfg.RateLimit.RequestsPerWindow,
		RateLimitWindow:    cfg.RateLimit.WindowDuration,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		AllowedOrigin:      origins[0],
	}, logger)
	defer chatHandler.Close()
	healthHandler := api.NewHealthHandler(repo, products.Len())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics(registry))
	r.Use(middleware.CORS(origins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Method(http.MethodGet, "/metrics", registry)

	chatHandler.RegisterRoutes(r)

	// Create server.
	// WriteTimeout stays 0 so /ws/chat connections are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartSweeper(ctx, sessions, cfg.Session.SweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func newCompleter(cfg *config.Config, logger *slog.Logger) llm.Completer {
	if !cfg.LLM.Enabled() {
		slog.Info("OPENAI_API_KEY not set, replies will use templates only")
		return llm.Unavailable{}
	}
	client, err := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		RequestTimeout: cfg.LLM.RequestTimeout,
	}, logger)
	if err != nil {
		slog.Warn("Failed to initialize model client, replies will use templates only", "error", err)
		return llm.Unavailable{}
	}
	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = cfg.LLM.MaxAttempts
	retry.BaseDelay = cfg.LLM.RetryBaseDelay
	slog.Info("Model client initialized", "model", cfg.LLM.Model, "max_attempts", retry.MaxAttempts)
	return llm.NewRetrying(client, retry, logger)
}

func newRetriever(cfg *config.Config, logger *slog.Logger) retrieval.Provider {
	var local retrieval.Provider = retrieval.None{}
	if idx, err := retrieval.LoadDir(cfg.KnowledgeDir); err != nil {
		slog.Warn("Knowledge base unavailable, retrieval disabled", "dir", cfg.KnowledgeDir, "error", err)
	} else {
		local = idx
	}

	if cfg.Retrieval.GRPCAddr == "" {
		return local
	}

	slog.Info("Attempting to connect to retrieval service via gRPC", "address", cfg.Retrieval.GRPCAddr)
	remote, err := retrieval.NewGRPCProvider(retrieval.DefaultGRPCConfig(cfg.Retrieval.GRPCAddr), logger)
	if err != nil {
		slog.Warn("Failed to connect to retrieval service, using local knowledge base", "error", err)
		return local
	}
	return &closingProvider{Provider: retrieval.WithFallback(remote, local, logger), close: remote.Close}
}

// closingProvider lets main release the gRPC connection behind a fallback.
type closingProvider struct {
	retrieval.Provider
	close func()
}

func (p *closingProvider) Close() { p.close() }
