package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderExtractive = "extractive"
)

type Config struct {
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":3000"`
	// DBPath enables durability of the latest result when set.
	DBPath string `env:"DB_PATH"`
	// TelegramToken enables the Telegram bot when set.
	TelegramToken string `env:"TELEGRAM_TOKEN"`

	Summarizer SummarizerConfig
	Fetch      FetchConfig     `envPrefix:"FETCH_"`
	Summarize  SummarizeConfig `envPrefix:"SUMMARIZE_"`
	Pipeline   PipelineConfig  `envPrefix:"PIPELINE_"`
	Schedule   ScheduleConfig  `envPrefix:"SCHEDULE_"`
}

type SummarizerConfig struct {
	Provider      string `env:"SUMMARIZER_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"        envDefault:"gpt-5-mini"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL"        envDefault:"gemini-2.5-flash"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`
}

type FetchConfig struct {
	Timeout        time.Duration `env:"TIMEOUT"         envDefault:"30s"`
	MaxRetries     int           `env:"MAX_RETRIES"     envDefault:"3"`
	BackoffInitial time.Duration `env:"BACKOFF_INITIAL" envDefault:"200ms"`
	BackoffMax     time.Duration `env:"BACKOFF_MAX"     envDefault:"5s"`
	MaxBytes       int64         `env:"MAX_BYTES"       envDefault:"52428800"`
	PerHostRPS     float64       `env:"PER_HOST_RPS"    envDefault:"0"`
}

type SummarizeConfig struct {
	ChunkLimit       int           `env:"CHUNK_LIMIT"        envDefault:"12000"`
	ReduceInputLimit int           `env:"REDUCE_INPUT_LIMIT" envDefault:"12000"`
	ChunkConcurrency int           `env:"CHUNK_CONCURRENCY"  envDefault:"4"`
	CallTimeout      time.Duration `env:"CALL_TIMEOUT"       envDefault:"60s"`
	MaxRetries       int           `env:"MAX_RETRIES"        envDefault:"3"`
	RateLimitRPS     float64       `env:"RATE_LIMIT_RPS"     envDefault:"0"`
	CacheSize        int           `env:"CACHE_SIZE"         envDefault:"1024"`
	CacheTTL         time.Duration `env:"CACHE_TTL"          envDefault:"24h"`
}

type PipelineConfig struct {
	Workers              int           `env:"WORKERS"                envDefault:"8"`
	Deadline             time.Duration `env:"DEADLINE"               envDefault:"5m"`
	ReduceTimeout        time.Duration `env:"REDUCE_TIMEOUT"         envDefault:"60s"`
	MaxDocuments         int           `env:"MAX_DOCUMENTS"          envDefault:"100"`
	MaxConcurrentBatches int           `env:"MAX_CONCURRENT_BATCHES" envDefault:"4"`
}

type ScheduleConfig struct {
	// Spec is a cron expression. The schedule is disabled when empty.
	Spec string   `env:"SPEC"`
	URLs []string `env:"URLS" envSeparator:","`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Summarizer.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderExtractive:
	default:
		errs = append(errs, fmt.Errorf("unknown summarizer provider %q", c.Summarizer.Provider))
	}

	if c.Summarize.ChunkLimit <= 0 {
		errs = append(errs, fmt.Errorf("chunk limit must be positive (limit = %d)", c.Summarize.ChunkLimit))
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive (workers = %d)", c.Pipeline.Workers))
	}
	if c.Pipeline.Deadline <= 0 {
		errs = append(errs, fmt.Errorf("deadline must be positive (deadline = %s)", c.Pipeline.Deadline))
	}
	if c.Fetch.MaxRetries < 0 || c.Summarize.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries must not be negative"))
	}
	if c.Schedule.Spec != "" && len(c.Schedule.URLs) == 0 {
		errs = append(errs, errors.New("schedule spec is set without urls"))
	}

	return errors.Join(errs...)
}
