package main

import (
	"context"
	"docdigest/internal/cache"
	"docdigest/internal/config"
	"docdigest/internal/database"
	"docdigest/internal/extractor"
	"docdigest/internal/fetcher"
	"docdigest/internal/pipeline"
	"docdigest/internal/retry"
	"docdigest/internal/summarizer"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
)

func loadConfig() (config.Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	return config.Load()
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	return log
}

// initDatabase returns a nil database when no path is configured.
func initDatabase(ctx context.Context, dbPath string, log *slog.Logger) (*database.Database, error) {
	if dbPath == "" {
		log.InfoContext(ctx, "DB_PATH is empty so the latest result is kept in memory only",
			"envVar", "DB_PATH")

		return nil, nil
	}

	return database.New(ctx, dbPath, log)
}

func initCache(ctx context.Context, db *database.Database, log *slog.Logger) *cache.Cache {
	var store cache.Store
	if db != nil {
		store = db
	}

	c := cache.New(store, log)
	if err := c.Restore(ctx); err != nil {
		log.ErrorContext(ctx, "Failed to restore latest result",
			"error", err)
	}

	return c
}

// initSummarizer returns nil when the configured provider is unusable, which
// selects the extractive fallback.
func initSummarizer(ctx context.Context, cfg config.SummarizerConfig, log *slog.Logger) summarizer.Summarizer {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			log.WarnContext(ctx, "OPENAI_API_KEY is missing so fallback will be used",
				"envVar", "OPENAI_API_KEY")

			return nil
		}

		s, err := summarizer.NewOpenAISummarizer(summarizer.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to create OpenAI summarizer so fallback will be used",
				"error", err,
				"model", cfg.OpenAIModel)

			return nil
		}

		log.InfoContext(ctx, "OpenAI summarizer is initialized",
			"provider", cfg.Provider,
			"model", cfg.OpenAIModel)

		return s
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			log.WarnContext(ctx, "GEMINI_API_KEY is missing so fallback will be used",
				"envVar", "GEMINI_API_KEY")

			return nil
		}

		s, err := summarizer.NewGeminiSummarizer(ctx, summarizer.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to create Gemini summarizer so fallback will be used",
				"error", err,
				"model", cfg.GeminiModel)

			return nil
		}

		log.InfoContext(ctx, "Gemini summarizer is initialized",
			"provider", cfg.Provider,
			"model", cfg.GeminiModel)

		return s
	default:
		log.InfoContext(ctx, "Extractive summarizer is selected",
			"provider", cfg.Provider)

		return nil
	}
}

func buildPipeline(
	ctx context.Context,
	cfg config.Config,
	publisher pipeline.Publisher,
	log *slog.Logger,
) *pipeline.Pipeline {
	f := fetcher.New(nil, fetcher.Options{
		Timeout: cfg.Fetch.Timeout,
		Retry: retry.Policy{
			MaxRetries:     cfg.Fetch.MaxRetries,
			BackoffInitial: cfg.Fetch.BackoffInitial,
			BackoffMax:     cfg.Fetch.BackoffMax,
			JitterFrac:     0.2,
		},
		MaxBytes:   cfg.Fetch.MaxBytes,
		PerHostRPS: cfg.Fetch.PerHostRPS,
	}, log)

	s := summarizer.NewClient(initSummarizer(ctx, cfg.Summarizer, log), summarizer.Options{
		ChunkConcurrency: cfg.Summarize.ChunkConcurrency,
		CallTimeout:      cfg.Summarize.CallTimeout,
		Retry: retry.Policy{
			MaxRetries: cfg.Summarize.MaxRetries,
			JitterFrac: 0.2,
		},
		RateLimitRPS:     cfg.Summarize.RateLimitRPS,
		CacheSize:        cfg.Summarize.CacheSize,
		CacheTTL:         cfg.Summarize.CacheTTL,
		ReduceInputLimit: cfg.Summarize.ReduceInputLimit,
	}, log)

	return pipeline.New(f, extractor.New(log), s, publisher, pipeline.Options{
		Workers:              cfg.Pipeline.Workers,
		Deadline:             cfg.Pipeline.Deadline,
		ChunkLimit:           cfg.Summarize.ChunkLimit,
		ReduceTimeout:        cfg.Pipeline.ReduceTimeout,
		MaxDocuments:         cfg.Pipeline.MaxDocuments,
		MaxConcurrentBatches: cfg.Pipeline.MaxConcurrentBatches,
	}, log)
}
