// ABOUTME: Centralized configuration for the homefacts CLI and servers
// ABOUTME: Loads from environment variables (and .env files) with validation and defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Index backends
const (
	IndexSQLite = "sqlite"
	IndexCharm  = "charm"
)

// Embedders
const (
	EmbedderOpenAI = "openai"
	EmbedderHash   = "hash"
)

// Config holds all configuration for homefacts
type Config struct {
	// Index settings
	Index  string
	DBPath string

	// Charm settings
	CharmHost   string
	CharmDBName string
	AutoSync    bool

	// Embedding / LLM settings
	Embedder       string
	OpenAIKey      string
	OpenAIBaseURL  string
	ChatModel      string
	EmbeddingModel string
	HashDimension  int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration

	// Resolution settings
	Epsilon         float64
	DefaultDistance float64
	ConstraintTopK  int
	RankTopK        int
	RankWorkers     int

	// Server settings
	HTTPAddr string
	LogLevel string
}

// DefaultDBPath is $XDG_DATA_HOME/homefacts/homefacts.db
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "homefacts", "homefacts.db")
}

// LoadDotEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env", filepath.Join(xdg.ConfigHome, "homefacts", ".env")}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	key := os.Getenv("OPENAI_API_KEY")
	defaultEmbedder := EmbedderHash
	if key != "" {
		defaultEmbedder = EmbedderOpenAI
	}

	cfg := &Config{
		Index:           getEnv("HOMEFACTS_INDEX", IndexSQLite),
		DBPath:          getEnv("HOMEFACTS_DB", DefaultDBPath()),
		CharmHost:       getEnv("CHARM_HOST", "charm.2389.dev"),
		CharmDBName:     getEnv("CHARM_DB", "homefacts"),
		AutoSync:        getEnvBool("CHARM_AUTO_SYNC", true),
		Embedder:        getEnv("HOMEFACTS_EMBEDDER", defaultEmbedder),
		OpenAIKey:       key,
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		ChatModel:       getEnv("HOMEFACTS_OPENAI_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  getEnv("HOMEFACTS_EMBEDDING_MODEL", "text-embedding-3-small"),
		HashDimension:   getEnvInt("HOMEFACTS_HASH_DIM", 1024),
		Timeout:         getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		MaxRetries:      getEnvInt("OPENAI_MAX_RETRIES", 3),
		RetryDelay:      getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),
		Epsilon:         getEnvFloat("HOMEFACTS_EPSILON", 1e-6),
		DefaultDistance: getEnvFloat("HOMEFACTS_DEFAULT_DISTANCE", 1.0),
		ConstraintTopK:  getEnvInt("HOMEFACTS_CONSTRAINT_TOP_K", 3),
		RankTopK:        getEnvInt("HOMEFACTS_RANK_TOP_K", 3),
		RankWorkers:     getEnvInt("HOMEFACTS_RANK_WORKERS", 4),
		HTTPAddr:        getEnv("HOMEFACTS_HTTP_ADDR", ":8750"),
		LogLevel:        getEnv("HOMEFACTS_LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

// Validate rejects out-of-range values
func (c *Config) Validate() error {
	switch c.Index {
	case IndexSQLite, IndexCharm:
	default:
		return fmt.Errorf("HOMEFACTS_INDEX must be sqlite or charm, got %q", c.Index)
	}
	switch c.Embedder {
	case EmbedderHash:
	case EmbedderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("HOMEFACTS_EMBEDDER=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("HOMEFACTS_EMBEDDER must be openai or hash, got %q", c.Embedder)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("HOMEFACTS_EPSILON must be > 0, got %g", c.Epsilon)
	}
	if c.DefaultDistance <= 0 {
		return fmt.Errorf("HOMEFACTS_DEFAULT_DISTANCE must be > 0, got %g", c.DefaultDistance)
	}
	if c.ConstraintTopK < 1 {
		return fmt.Errorf("HOMEFACTS_CONSTRAINT_TOP_K must be >= 1, got %d", c.ConstraintTopK)
	}
	if c.RankTopK < 0 {
		return fmt.Errorf("HOMEFACTS_RANK_TOP_K must be >= 0, got %d", c.RankTopK)
	}
	if c.RankWorkers < 1 {
		return fmt.Errorf("HOMEFACTS_RANK_WORKERS must be >= 1, got %d", c.RankWorkers)
	}
	if c.HashDimension < 16 {
		return fmt.Errorf("HOMEFACTS_HASH_DIM must be >= 16, got %d", c.HashDimension)
	}
	return nil
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
