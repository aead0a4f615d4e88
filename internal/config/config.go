// ABOUTME: Centralized configuration for the ACE pipeline
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the pipeline, its stores and transports
type Config struct {
	// LLM settings
	Provider       string
	OpenAIKey      string
	ChatModel      string
	EmbeddingModel string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration

	AnthropicKey   string
	AnthropicModel string

	// Charm KV settings for the playbook index
	CharmHost   string
	CharmDBName string
	AutoSync    bool

	// Playbook settings
	PlaybookCollection string
	PlaybookPath       string

	// Run store and HTTP
	DatabasePath string
	HTTPAddr     string

	// Logging
	LogLevel  string
	LogFormat string
	LogDir    string

	// Supervisor settings
	OrderingPolicy    string
	MaxReroutes       int
	MaxSteps          int
	MaxToolIterations int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Provider:           strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		ChatModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		Temperature:        getEnvFloat("TEMPERATURE", 0),
		MaxTokens:          getEnvInt("MAX_TOKENS", 0),
		Timeout:            getEnvDuration("TIMEOUT", 60*time.Second),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RetryDelay:         getEnvDuration("RETRY_DELAY", 2*time.Second),
		AnthropicKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		CharmHost:          getEnv("CHARM_HOST", "cloud.charm.sh"),
		CharmDBName:        getEnv("CHARM_DB", "playbook"),
		AutoSync:           getEnvBool("CHARM_AUTO_SYNC", true),
		PlaybookCollection: getEnv("PLAYBOOK_COLLECTION", "agent3_collection"),
		PlaybookPath:       getEnv("PLAYBOOK_PATH", "playbook.json"),
		DatabasePath:       getEnv("DATABASE_PATH", defaultDatabasePath()),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8000"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogDir:             os.Getenv("LOG_DIR"),
		OrderingPolicy:     strings.ToLower(getEnv("ORDERING_POLICY", "enforce")),
		MaxReroutes:        getEnvInt("MAX_REROUTES", 2),
		MaxSteps:           getEnvInt("MAX_STEPS", 12),
		MaxToolIterations:  getEnvInt("MAX_TOOL_ITERATIONS", 5),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEMPERATURE must be 0-2, got %f", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("MAX_TOKENS must be >= 0, got %d", c.MaxTokens)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("TIMEOUT must be positive, got %v", c.Timeout)
	}
	switch c.OrderingPolicy {
	case "enforce", "trust":
	default:
		return fmt.Errorf("ORDERING_POLICY must be enforce or trust, got %q", c.OrderingPolicy)
	}
	if c.MaxReroutes < 0 || c.MaxReroutes > 10 {
		return fmt.Errorf("MAX_REROUTES must be 0-10, got %d", c.MaxReroutes)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("MAX_STEPS must be positive, got %d", c.MaxSteps)
	}
	if c.MaxToolIterations <= 0 {
		return fmt.Errorf("MAX_TOOL_ITERATIONS must be positive, got %d", c.MaxToolIterations)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// RequireLLM reports a missing key for the configured provider. Embeddings
// always go through OpenAI.
func (c *Config) RequireLLM() error {
	if c.Provider == "anthropic" && c.AnthropicKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
	}
	if c.Provider == "openai" && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

// defaultDatabasePath follows the XDG data directory convention
func defaultDatabasePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "ace", "runs.db")
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "ace", "runs.db")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
