package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendElasticsearch = "elasticsearch"
	BackendBleve         = "bleve"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	JWTSecret string `yaml:"jwt_secret"`

	// Search backend
	Backend          string        `yaml:"backend"`
	ElasticURL       string        `yaml:"elastic_url"`
	ElasticIndex     string        `yaml:"elastic_index"`
	ElasticUsername  string        `yaml:"elastic_username"`
	ElasticPassword  string        `yaml:"elastic_password"`
	ElasticTimeout   time.Duration `yaml:"elastic_timeout"`
	ElasticRefresh   string        `yaml:"elastic_refresh"`
	AnalyzerLanguage string        `yaml:"analyzer_language"`
	BlevePath        string        `yaml:"bleve_path"`

	// Indexing and search
	ChunkThreshold    int `yaml:"chunk_threshold"`
	MaxResults        int `yaml:"max_results"`
	MaxConcurrentPuts int `yaml:"max_concurrent_puts"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	UploadDir      string `yaml:"upload_dir"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// Reindex
	ReindexTimeout time.Duration `yaml:"reindex_timeout"`
	ReindexRate    float64       `yaml:"reindex_rate"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port: "8090",

		Backend:          BackendElasticsearch,
		ElasticURL:       "http://localhost:9200",
		ElasticIndex:     "documents",
		ElasticTimeout:   30 * time.Second,
		ElasticRefresh:   "wait_for",
		AnalyzerLanguage: "english",
		BlevePath:        "data/documents.bleve",

		ChunkThreshold:    30000,
		MaxResults:        1000,
		MaxConcurrentPuts: 4,

		WorkerCount:  4,
		MaxQueueSize: 100,

		MaxUploadBytes: 52428800, // 50MB
		UploadDir:      "data/uploads",

		JobTTL: 1 * time.Hour,

		ReindexTimeout: 30 * time.Minute,

		PDFFallbackPdftotext: true,

		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $DOCSEARCH_CONFIG when path is empty), then a .env file in the working
// directory, then the environment. A missing YAML or .env file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("DOCSEARCH_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envOr("PORT", cfg.Port)

	cfg.JWTSecret = envOr("JWT_SECRET", cfg.JWTSecret)

	cfg.Backend = strings.ToLower(envOr("BACKEND", cfg.Backend))
	cfg.ElasticURL = envOr("ELASTIC_URL", cfg.ElasticURL)
	cfg.ElasticIndex = envOr("ELASTIC_INDEX", cfg.ElasticIndex)
	cfg.ElasticUsername = envOr("ELASTIC_USERNAME", cfg.ElasticUsername)
	cfg.ElasticPassword = envOr("ELASTIC_PASSWORD", cfg.ElasticPassword)
	cfg.ElasticTimeout = envDuration("ELASTIC_TIMEOUT", cfg.ElasticTimeout)
	cfg.ElasticRefresh = envOr("ELASTIC_REFRESH", cfg.ElasticRefresh)
	cfg.AnalyzerLanguage = envOr("ANALYZER_LANGUAGE", cfg.AnalyzerLanguage)
	cfg.BlevePath = envOr("BLEVE_PATH", cfg.BlevePath)

	cfg.ChunkThreshold = envInt("CHUNK_THRESHOLD", cfg.ChunkThreshold)
	cfg.MaxResults = envInt("MAX_RESULTS", cfg.MaxResults)
	cfg.MaxConcurrentPuts = envInt("MAX_CONCURRENT_PUTS", cfg.MaxConcurrentPuts)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.UploadDir = envOr("UPLOAD_DIR", cfg.UploadDir)

	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.ReindexTimeout = envDuration("REINDEX_TIMEOUT", cfg.ReindexTimeout)
	cfg.ReindexRate = envFloat("REINDEX_RATE", cfg.ReindexRate)

	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
}

func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxConcurrentPuts <= 0 {
		cfg.MaxConcurrentPuts = def.MaxConcurrentPuts
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.ElasticTimeout <= 0 {
		cfg.ElasticTimeout = def.ElasticTimeout
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.ReindexTimeout <= 0 {
		cfg.ReindexTimeout = def.ReindexTimeout
	}
	if cfg.ReindexRate < 0 {
		cfg.ReindexRate = 0
	}
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Backend {
	case BackendElasticsearch:
		if c.ElasticURL == "" {
			return fmt.Errorf("ELASTIC_URL is required for the elasticsearch backend")
		}
		if c.ElasticIndex == "" {
			return fmt.Errorf("ELASTIC_INDEX is required for the elasticsearch backend")
		}
	case BackendBleve:
	default:
		return fmt.Errorf("BACKEND must be %q or %q, got %q", BackendElasticsearch, BackendBleve, c.Backend)
	}
	if c.ChunkThreshold <= 0 {
		return fmt.Errorf("CHUNK_THRESHOLD must be positive, got %d", c.ChunkThreshold)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
