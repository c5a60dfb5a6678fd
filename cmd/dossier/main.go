package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/barekit/dossier/pkg/answer"
	"github.com/barekit/dossier/pkg/api"
	"github.com/barekit/dossier/pkg/config"
	"github.com/barekit/dossier/pkg/document"
	"github.com/barekit/dossier/pkg/export"
	"github.com/barekit/dossier/pkg/fingerprint"
	"github.com/barekit/dossier/pkg/fingerprint/rediscache"
	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/knowledge/backend"
	"github.com/barekit/dossier/pkg/llm"
	llmopenai "github.com/barekit/dossier/pkg/llm/openai"
	"github.com/openai/openai-go/option"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := setupLogging(cfg.LogLevel)

	store, err := backend.New(ctx, backend.Config{
		Type:             backend.Type(cfg.StoreType),
		ConnectionString: cfg.StoreDSN,
		Username:         cfg.StoreUsername,
		Password:         cfg.StorePassword,
		DBName:           cfg.StoreDBName,
	})
	if err != nil {
		logger.Error("Failed to open knowledge store", "type", cfg.StoreType, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(context.Background(), store); err != nil {
			logger.Warn("Failed to close knowledge store", "error", err)
		}
	}()

	var provider llm.Provider
	if cfg.ModelConfigured() {
		provider = newProvider(cfg, logger)
		logger.Info("Language model enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set; Word and PDF parsing are disabled and answers use the best direct match")
	}

	encoder, err := newEncoder(cfg, provider, logger)
	if err != nil {
		logger.Error("Failed to set up fingerprint cache", "error", err)
		os.Exit(1)
	}

	kb := knowledge.NewBase(encoder, store)
	synth := answer.New(store, provider,
		answer.WithEncoder(encoder),
		answer.WithTopK(cfg.TopK),
		answer.WithLogger(logger),
		answer.WithDebug(strings.EqualFold(cfg.LogLevel, "debug")),
	)
	parser := document.NewParser(provider, document.WithLogger(logger))

	srv := api.New(kb, synth, parser, export.New(),
		api.WithModelConfigured(cfg.ModelConfigured()),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithLogger(logger),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "store", cfg.StoreType, "strategy", cfg.IngestStrategy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server exited")
}

func newProvider(cfg *config.Config, logger *slog.Logger) llm.Provider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	p := llmopenai.New(opts...)
	p.SetModel(cfg.OpenAIModel)

	return llm.NewResilient(p,
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithMaxRetries(cfg.LLMMaxRetries),
		llm.WithRateLimit(cfg.LLMRateLimit, 1),
		llm.WithLogger(logger),
	)
}

// newEncoder builds the fingerprint encoder shared by ingestion and
// querying. Stored fingerprints are only comparable with queries encoded the
// same way.
func newEncoder(cfg *config.Config, provider llm.Provider, logger *slog.Logger) (fingerprint.Encoder, error) {
	opts := []fingerprint.Option{
		fingerprint.WithDimension(cfg.FingerprintDimension),
		fingerprint.WithLogger(logger),
	}
	if cfg.FingerprintCacheURL != "" {
		redisOpts, err := redis.ParseURL(cfg.FingerprintCacheURL)
		if err != nil {
			return nil, err
		}
		cache := rediscache.New(redis.NewClient(redisOpts),
			rediscache.WithTTL(cfg.FingerprintCacheTTL),
			rediscache.WithLogger(logger),
		)
		opts = append(opts, fingerprint.WithCache(cache))
	}

	if cfg.IngestStrategy == config.StrategyAssisted {
		if provider == nil {
			logger.Warn("INGEST_STRATEGY=assisted without a model; fingerprints fall back to word hashing")
		} else {
			logger.Warn("INGEST_STRATEGY=assisted also encodes every query with the model; expect one extra model call per question answered")
		}
		return fingerprint.NewAssisted(provider, opts...), nil
	}
	return fingerprint.NewLocal(opts...), nil
}

// setupLogging configures slog with the specified log level
func setupLogging(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
