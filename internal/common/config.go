package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Logging     LoggingConfig  `toml:"logging"`
	GLPI        GLPIConfig     `toml:"glpi"`
	Retry       RetryConfig    `toml:"retry"`
	LLM         LLMConfig      `toml:"llm"`
	Prompts     PromptsConfig  `toml:"prompts"`
	Storage     StorageConfig  `toml:"storage"`
	Workers     WorkersConfig  `toml:"workers"`
	Pipeline    PipelineConfig `toml:"pipeline"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// GLPIConfig contains the ticketing system REST API settings
type GLPIConfig struct {
	BaseURL    string `toml:"base_url" validate:"required,url"`   // e.g. https://glpi.example.com/apirest.php
	AppToken   string `toml:"app_token" validate:"required"`      // App-Token header
	UserToken  string `toml:"user_token"`                         // Optional, sent as "Authorization: user_token ..."
	MaxRetries int    `toml:"max_retries" validate:"min=1,max=10"` // Attempts per remote call
	Timeout    string `toml:"timeout"`                            // Per-request timeout (default: "30s")
	RateLimit  int    `toml:"rate_limit"`                         // Requests per second (default: 5)
}

// RetryConfig is the backoff shape shared by every remote call
type RetryConfig struct {
	BackoffBase string `toml:"backoff_base"` // First wait (default: "1s")
	BackoffCap  string `toml:"backoff_cap"`  // Upper bound on any single wait (default: "5s")
}

// LLMProvider represents the text generation backend
type LLMProvider string

const (
	// LLMProviderOpenAI uses any OpenAI-compatible chat/completions endpoint
	LLMProviderOpenAI LLMProvider = "openai"
	// LLMProviderClaude uses Anthropic Claude
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses Google Gemini
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig groups the three model endpoints used by the pipeline
type LLMConfig struct {
	Provider  LLMProvider     `toml:"provider" validate:"oneof=openai claude gemini"`
	Timeout   string          `toml:"timeout"` // Per-call timeout (default: "2m")
	Text      ModelConfig     `toml:"text"`
	Vision    ModelConfig     `toml:"vision"`
	Embedding EmbeddingConfig `toml:"embedding"`
}

// ModelConfig describes a chat-capable model endpoint
type ModelConfig struct {
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key" validate:"required"`
	Model       string  `toml:"model" validate:"required"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// EmbeddingConfig describes the OpenAI-compatible embeddings endpoint
type EmbeddingConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"` // Falls back to llm.text.api_key
	Model   string `toml:"model" validate:"required"`
}

// PromptsConfig holds prompt templates. {name} placeholders are filled per run.
type PromptsConfig struct {
	Text    string `toml:"text"`    // Supports {ticket_content}
	Image   string `toml:"image"`   // Sent with every image
	Combine string `toml:"combine"` // Must reference {text_summary} and {image_summary}
	File    string `toml:"file"`    // Optional YAML prompt file (prompt, image_prompt, combine_prompt)
}

// StorageConfig contains S3-compatible object storage settings
type StorageConfig struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket" validate:"required"`
	AccessKeyID     string `toml:"access_key_id" validate:"required"`
	SecretAccessKey string `toml:"secret_access_key" validate:"required"`
	KeyPrefix       string `toml:"key_prefix"`     // Prepended to every object key
	ArtifactDir     string `toml:"artifact_dir"`   // Local scratch directory for rendered PDFs
	SweepSchedule   string `toml:"sweep_schedule"` // Cron spec for orphaned artifact cleanup
	ArtifactTTL     string `toml:"artifact_ttl"`   // Age after which an orphaned artifact is removed
}

// WorkersConfig sizes the run dispatcher
type WorkersConfig struct {
	Concurrency int `toml:"concurrency" validate:"min=1"`
	QueueSize   int `toml:"queue_size" validate:"min=1"`
}

// PipelineConfig bounds a single pipeline run
type PipelineConfig struct {
	RunTimeout string `toml:"run_timeout"` // Overall deadline per ticket (default: "10m")
}

// Default prompt templates
const (
	DefaultTextPrompt    = "Summarize this GLPI ticket:"
	DefaultImagePrompt   = "Describe this image and its relevance to a help desk ticket:"
	DefaultCombinePrompt = "Combine these summaries:\nText: {text_summary}\nImages: {image_summary}"
)

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8001,
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		GLPI: GLPIConfig{
			MaxRetries: 3,
			Timeout:    "30s",
			RateLimit:  5,
		},
		Retry: RetryConfig{
			BackoffBase: "1s",
			BackoffCap:  "5s",
		},
		LLM: LLMConfig{
			Provider: LLMProviderOpenAI,
			Timeout:  "2m",
			Text: ModelConfig{
				BaseURL:     "https://chatapi.akash.network/api/v1",
				Model:       "Meta-Llama-3-1-8B-Instruct-FP8",
				Temperature: 0.2,
				MaxTokens:   1000,
			},
			Vision: ModelConfig{
				BaseURL: "https://openrouter.ai/api/v1",
				Model:   "qwen/qwen2.5-vl-72b-instruct:free",
			},
			Embedding: EmbeddingConfig{
				Model: "BAAI/bge-large-en-v1.5",
			},
		},
		Prompts: PromptsConfig{
			Text:    DefaultTextPrompt,
			Image:   DefaultImagePrompt,
			Combine: DefaultCombinePrompt,
			File:    DefaultPromptFile,
		},
		Storage: StorageConfig{
			Region:        "us-east-1",
			ArtifactDir:   "./data/reports",
			SweepSchedule: "@every 15m",
			ArtifactTTL:   "1h",
		},
		Workers: WorkersConfig{
			Concurrency: 4,
			QueueSize:   64,
		},
		Pipeline: PipelineConfig{
			RunTimeout: "10m",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> prompt file -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyPromptFile(config); err != nil {
		return nil, err
	}

	applyEnvOverrides(config)

	return config, nil
}

// firstEnv returns the value of the first non-empty environment variable
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// applyEnvOverrides applies environment variable overrides to config.
// TICKETDIGEST_* names take priority over the legacy deployment names.
func applyEnvOverrides(config *Config) {
	if env := firstEnv("TICKETDIGEST_ENV", "GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := firstEnv("TICKETDIGEST_SERVER_PORT", "PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TICKETDIGEST_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging
	if level := os.Getenv("TICKETDIGEST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TICKETDIGEST_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		config.Logging.Output = outputs
	}

	// GLPI
	if v := firstEnv("TICKETDIGEST_GLPI_URL", "GLPI_URL"); v != "" {
		config.GLPI.BaseURL = v
	}
	if v := firstEnv("TICKETDIGEST_GLPI_APP_TOKEN", "GLPI_APP_TOKEN"); v != "" {
		config.GLPI.AppToken = v
	}
	if v := firstEnv("TICKETDIGEST_GLPI_USER_TOKEN", "GLPI_USER_TOKEN"); v != "" {
		config.GLPI.UserToken = v
	}
	if v := firstEnv("TICKETDIGEST_MAX_RETRIES", "MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.GLPI.MaxRetries = n
		}
	}
	if v := os.Getenv("TICKETDIGEST_GLPI_TIMEOUT"); v != "" {
		config.GLPI.Timeout = v
	}

	// LLM
	if v := os.Getenv("TICKETDIGEST_LLM_PROVIDER"); v != "" {
		config.LLM.Provider = LLMProvider(strings.ToLower(v))
	}
	if v := firstEnv("TICKETDIGEST_TEXT_API_KEY", "AKASH_API_KEY"); v != "" {
		config.LLM.Text.APIKey = v
	}
	if v := firstEnv("TICKETDIGEST_TEXT_API_BASE", "AKASH_API_BASE"); v != "" {
		config.LLM.Text.BaseURL = v
	}
	if v := os.Getenv("TICKETDIGEST_TEXT_MODEL"); v != "" {
		config.LLM.Text.Model = v
	}
	if v := firstEnv("TICKETDIGEST_VISION_API_KEY", "OPENROUTER_API_KEY"); v != "" {
		config.LLM.Vision.APIKey = v
	}
	if v := firstEnv("TICKETDIGEST_VISION_API_BASE", "OPENROUTER_API_BASE"); v != "" {
		config.LLM.Vision.BaseURL = v
	}
	if v := os.Getenv("TICKETDIGEST_VISION_MODEL"); v != "" {
		config.LLM.Vision.Model = v
	}
	if v := os.Getenv("TICKETDIGEST_EMBEDDING_API_KEY"); v != "" {
		config.LLM.Embedding.APIKey = v
	}
	if v := os.Getenv("TICKETDIGEST_EMBEDDING_API_BASE"); v != "" {
		config.LLM.Embedding.BaseURL = v
	}
	if v := os.Getenv("TICKETDIGEST_EMBEDDING_MODEL"); v != "" {
		config.LLM.Embedding.Model = v
	}

	// Prompts
	if v := firstEnv("TICKETDIGEST_PROMPT", "PROMPT"); v != "" {
		config.Prompts.Text = v
	}
	if v := firstEnv("TICKETDIGEST_IMAGE_PROMPT", "IMAGE_PROMPT"); v != "" {
		config.Prompts.Image = v
	}

	// Storage
	if v := firstEnv("TICKETDIGEST_STORAGE_ENDPOINT", "WASABI_ENDPOINT_URL"); v != "" {
		config.Storage.Endpoint = v
	}
	if v := firstEnv("TICKETDIGEST_STORAGE_ACCESS_KEY_ID", "WASABI_ACCESS_KEY_ID"); v != "" {
		config.Storage.AccessKeyID = v
	}
	if v := firstEnv("TICKETDIGEST_STORAGE_SECRET_ACCESS_KEY", "WASABI_SECRET_ACCESS_KEY"); v != "" {
		config.Storage.SecretAccessKey = v
	}
	if v := firstEnv("TICKETDIGEST_STORAGE_REGION", "WASABI_REGION"); v != "" {
		config.Storage.Region = v
	}
	if v := firstEnv("TICKETDIGEST_STORAGE_BUCKET", "WASABI_BUCKET_NAME"); v != "" {
		config.Storage.Bucket = v
	}
	if v := os.Getenv("TICKETDIGEST_ARTIFACT_DIR"); v != "" {
		config.Storage.ArtifactDir = v
	}

	// Workers
	if v := os.Getenv("TICKETDIGEST_WORKERS_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Workers.Concurrency = n
		}
	}
	if v := os.Getenv("TICKETDIGEST_WORKERS_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Workers.QueueSize = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks that every credential and setting required to serve traffic is present.
// The process must not start when this fails.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"glpi.timeout":         c.GLPI.Timeout,
		"retry.backoff_base":   c.Retry.BackoffBase,
		"retry.backoff_cap":    c.Retry.BackoffCap,
		"llm.timeout":          c.LLM.Timeout,
		"storage.artifact_ttl": c.Storage.ArtifactTTL,
		"pipeline.run_timeout": c.Pipeline.RunTimeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s: invalid duration '%s': %w", name, value, err)
		}
	}

	// The merge call must carry both summaries
	for _, name := range []string{"text_summary", "image_summary"} {
		if !HasPlaceholder(c.Prompts.Combine, name) {
			return fmt.Errorf("invalid configuration: prompts.combine: missing {%s} placeholder", name)
		}
	}

	return nil
}

// RetryPolicy builds the retry policy for remote calls from the retry and GLPI sections
func (c *Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: c.GLPI.MaxRetries,
		BackoffBase: ParseDurationOr(c.Retry.BackoffBase, DefaultBackoffBase),
		BackoffCap:  ParseDurationOr(c.Retry.BackoffCap, DefaultBackoffCap),
	}
}

// EmbeddingAPIKey returns the embedding key, falling back to the text model key
func (c *Config) EmbeddingAPIKey() string {
	if c.LLM.Embedding.APIKey != "" {
		return c.LLM.Embedding.APIKey
	}
	return c.LLM.Text.APIKey
}

// EmbeddingBaseURL returns the embedding base URL, falling back to the text model base URL
func (c *Config) EmbeddingBaseURL() string {
	if c.LLM.Embedding.BaseURL != "" {
		return c.LLM.Embedding.BaseURL
	}
	return c.LLM.Text.BaseURL
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDurationOr parses a duration string, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
