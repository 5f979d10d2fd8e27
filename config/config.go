// Package config provides configuration management for the application.
//
// Values are resolved in this order, later sources winning:
//
//	built-in defaults -> config.yaml (with ${VAR} expansion) -> .env -> process environment
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mediaqa/internal/core"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Groq      GroqConfig      `yaml:"groq"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Video     VideoConfig     `yaml:"video"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Assistant AssistantConfig `yaml:"assistant"`
	Logging   LogConfig       `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// MasterKey protects the /v1 JSON API when set
	MasterKey string `yaml:"master_key"`
	// BodySizeLimit caps request bodies, e.g. "512M". Empty uses DefaultBodySizeLimit.
	BodySizeLimit string `yaml:"body_size_limit"`
	// UploadDir holds temporary video files. Empty uses the OS temp dir.
	UploadDir string `yaml:"upload_dir"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
}

// GroqConfig holds Groq configuration
type GroqConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// OpenAIConfig configures the OpenAI-compatible embedder.
// It is never used for chat.
type OpenAIConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
}

// VideoConfig bounds the wait for hosted video processing
type VideoConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	PollMaxInterval   time.Duration `yaml:"poll_max_interval"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
}

// SearchConfig configures the web search tool
type SearchConfig struct {
	BaseURL    string `yaml:"base_url"`
	MaxResults int    `yaml:"max_results"`
}

// CacheConfig holds search cache configuration
type CacheConfig struct {
	// Type is "local", "redis" or "none"
	Type string `yaml:"type"`
	// TTL in seconds
	TTL   int         `yaml:"ttl"`
	Dir   string      `yaml:"dir"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific cache configuration
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// StorageConfig selects the database used for persisted runs
type StorageConfig struct {
	// Type is "postgresql", "sqlite" or "mongodb"
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite-specific storage configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific storage configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific storage configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// KnowledgeConfig describes the PDF knowledge base
type KnowledgeConfig struct {
	URLs       []string `yaml:"urls"`
	Collection string   `yaml:"collection"`
	// DatabaseURL is the pgvector database. Empty reuses Storage.PostgreSQL.URL.
	DatabaseURL  string `yaml:"database_url"`
	Embedder     string `yaml:"embedder"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	SearchLimit  int    `yaml:"search_limit"`
	Recreate     bool   `yaml:"recreate"`
}

// AssistantConfig holds PDF assistant configuration
type AssistantConfig struct {
	Table         string `yaml:"table"`
	DefaultUser   string `yaml:"default_user"`
	MaxToolRounds int    `yaml:"max_tool_rounds"`
	HistoryLimit  int    `yaml:"history_limit"`
}

// LogConfig holds log output configuration
type LogConfig struct {
	// Format is "pretty" or "json". Empty picks pretty on a terminal.
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// MetricsConfig holds observability configuration for Prometheus metrics
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// HTTPConfig holds outbound HTTP client timeouts in seconds
type HTTPConfig struct {
	Timeout               int `yaml:"timeout"`
	ResponseHeaderTimeout int `yaml:"response_header_timeout"`
}

// Embedder names
const (
	EmbedderGemini = "gemini"
	EmbedderOpenAI = "openai"
)

// DefaultBodySizeLimit is large enough for short video clips
const DefaultBodySizeLimit = "512M"

// Body size limit bounds accepted by ValidateBodySizeLimit
const (
	minBodySizeLimit = 1024
	maxBodySizeLimit = 2 * 1024 * 1024 * 1024
)

// DefaultKnowledgeURL is indexed when no KNOWLEDGE_URLS are configured.
const DefaultKnowledgeURL = "https://phi-public.s3.amazonaws.com/recipes/ThaiRecipes.pdf"

// defaultConfigPaths are searched when Load is called without a path
var defaultConfigPaths = []string{"config/config.yaml", "config.yaml"}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			BodySizeLimit: DefaultBodySizeLimit,
		},
		Gemini: GeminiConfig{
			Model:               "gemini-2.5-flash",
			EmbeddingModel:      "gemini-embedding-001",
			EmbeddingDimensions: 768,
		},
		Groq: GroqConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
		},
		OpenAI: OpenAIConfig{
			BaseURL:             "https://api.openai.com/v1",
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
		},
		Video: VideoConfig{
			PollInterval:      time.Second,
			PollMaxInterval:   10 * time.Second,
			ProcessingTimeout: 5 * time.Minute,
		},
		Search: SearchConfig{
			BaseURL:    "https://api.duckduckgo.com",
			MaxResults: 5,
		},
		Cache: CacheConfig{
			Type: "local",
			TTL:  6 * 60 * 60,
			Dir:  ".cache/search",
			Redis: RedisConfig{
				Prefix: "mediaqa:search:",
			},
		},
		Storage: StorageConfig{
			Type:   "postgresql",
			SQLite: SQLiteConfig{Path: "data/mediaqa.db"},
			PostgreSQL: PostgreSQLConfig{
				URL:      "postgres://ai:ai@localhost:5532/ai",
				MaxConns: 10,
			},
			MongoDB: MongoDBConfig{
				URL:      "mongodb://localhost:27017",
				Database: "mediaqa",
			},
		},
		Knowledge: KnowledgeConfig{
			URLs:         []string{DefaultKnowledgeURL},
			Collection:   "recipes",
			Embedder:     EmbedderGemini,
			ChunkSize:    1500,
			ChunkOverlap: 150,
			SearchLimit:  5,
		},
		Assistant: AssistantConfig{
			Table:         "pdf_assistant",
			DefaultUser:   "user",
			MaxToolRounds: 5,
			HistoryLimit:  20,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
		HTTP: HTTPConfig{
			Timeout:               600,
			ResponseHeaderTimeout: 600,
		},
	}
}

// Load reads configuration from file and environment.
// An empty path searches the default locations; a missing default file is not an error.
func Load(path string) (*Config, error) {
	// Ignore error if .env file doesn't exist
	_ = godotenv.Load()

	cfg := buildDefaultConfig()

	if err := loadYAML(cfg, path); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := ValidateBodySizeLimit(cfg.Server.BodySizeLimit); err != nil {
		return nil, core.NewConfigurationError("invalid server.body_size_limit", err)
	}
	return cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	paths := defaultConfigPaths
	explicit := path != ""
	if explicit {
		paths = []string{path}
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !explicit {
				continue
			}
			return core.NewConfigurationError("failed to read config file "+p, err)
		}
		expanded := expandString(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return core.NewConfigurationError("failed to parse config file "+p, err)
		}
		return nil
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders.
// ${VAR} with VAR unset or empty is left untouched so missing secrets stay visible.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

func applyEnvOverrides(cfg *Config) error {
	envString("PORT", &cfg.Server.Port)
	envString("MASTER_KEY", &cfg.Server.MasterKey)
	envString("BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit)
	envString("UPLOAD_DIR", &cfg.Server.UploadDir)

	envString("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	envString("GOOGLE_API_KEY", &cfg.Gemini.APIKey)
	envString("GEMINI_MODEL", &cfg.Gemini.Model)
	envString("GEMINI_EMBEDDING_MODEL", &cfg.Gemini.EmbeddingModel)

	envString("GROQ_API_KEY", &cfg.Groq.APIKey)
	envString("GROQ_BASE_URL", &cfg.Groq.BaseURL)
	envString("GROQ_MODEL", &cfg.Groq.Model)

	envString("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	envString("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	envString("OPENAI_EMBEDDING_MODEL", &cfg.OpenAI.EmbeddingModel)

	envString("SEARCH_BASE_URL", &cfg.Search.BaseURL)

	envString("CACHE_TYPE", &cfg.Cache.Type)
	envString("CACHE_DIR", &cfg.Cache.Dir)
	envString("REDIS_URL", &cfg.Cache.Redis.URL)
	envString("REDIS_PREFIX", &cfg.Cache.Redis.Prefix)

	envString("STORAGE_TYPE", &cfg.Storage.Type)
	envString("SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	envString("DATABASE_URL", &cfg.Storage.PostgreSQL.URL)
	envString("MONGODB_URL", &cfg.Storage.MongoDB.URL)
	envString("MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)

	envString("KNOWLEDGE_COLLECTION", &cfg.Knowledge.Collection)
	envString("KNOWLEDGE_DATABASE_URL", &cfg.Knowledge.DatabaseURL)
	envString("EMBEDDER", &cfg.Knowledge.Embedder)
	if v := os.Getenv("KNOWLEDGE_URLS"); v != "" {
		cfg.Knowledge.URLs = splitList(v)
	}

	envString("ASSISTANT_TABLE", &cfg.Assistant.Table)

	envString("LOG_FORMAT", &cfg.Logging.Format)
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("METRICS_ENDPOINT", &cfg.Metrics.Endpoint)

	var errs []error
	errs = append(errs,
		envInt("GEMINI_EMBEDDING_DIMENSIONS", &cfg.Gemini.EmbeddingDimensions),
		envInt("OPENAI_EMBEDDING_DIMENSIONS", &cfg.OpenAI.EmbeddingDimensions),
		envDuration("VIDEO_POLL_INTERVAL", &cfg.Video.PollInterval),
		envDuration("VIDEO_POLL_MAX_INTERVAL", &cfg.Video.PollMaxInterval),
		envDuration("VIDEO_PROCESSING_TIMEOUT", &cfg.Video.ProcessingTimeout),
		envInt("SEARCH_MAX_RESULTS", &cfg.Search.MaxResults),
		envInt("CACHE_TTL", &cfg.Cache.TTL),
		envInt("POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns),
		envInt("KNOWLEDGE_CHUNK_SIZE", &cfg.Knowledge.ChunkSize),
		envInt("KNOWLEDGE_CHUNK_OVERLAP", &cfg.Knowledge.ChunkOverlap),
		envInt("KNOWLEDGE_SEARCH_LIMIT", &cfg.Knowledge.SearchLimit),
		envBool("KNOWLEDGE_RECREATE", &cfg.Knowledge.Recreate),
		envInt("ASSISTANT_MAX_TOOL_ROUNDS", &cfg.Assistant.MaxToolRounds),
		envInt("ASSISTANT_HISTORY_LIMIT", &cfg.Assistant.HistoryLimit),
		envBool("METRICS_ENABLED", &cfg.Metrics.Enabled),
		envInt("HTTP_TIMEOUT", &cfg.HTTP.Timeout),
		envInt("HTTP_RESPONSE_HEADER_TIMEOUT", &cfg.HTTP.ResponseHeaderTimeout),
	)
	if err := errors.Join(errs...); err != nil {
		return core.NewConfigurationError("invalid environment override", err)
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// envDuration accepts plain integers (seconds) or Go duration strings.
func envDuration(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var bodySizePattern = regexp.MustCompile(`^(\d+)([KMG]B?)?$`)

// ParseBodySizeLimit converts a size such as "10M" or "100KB" to bytes.
// An empty string returns the default limit.
func ParseBodySizeLimit(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		s = DefaultBodySizeLimit
	}
	m := bodySizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid body size limit %q: expected a number with optional K, M or G suffix", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid body size limit %q: %w", s, err)
	}
	switch strings.TrimSuffix(m[2], "B") {
	case "K":
		n *= 1024
	case "M":
		n *= 1024 * 1024
	case "G":
		n *= 1024 * 1024 * 1024
	}
	return n, nil
}

// ValidateBodySizeLimit checks the format and bounds of a body size limit.
func ValidateBodySizeLimit(s string) error {
	n, err := ParseBodySizeLimit(s)
	if err != nil {
		return err
	}
	if n < minBodySizeLimit {
		return fmt.Errorf("body size limit %q is below the minimum of 1K", s)
	}
	if n > maxBodySizeLimit {
		return fmt.Errorf("body size limit %q exceeds the maximum of 2G", s)
	}
	return nil
}

// Target names an entry point whose required settings Validate checks.
type Target string

const (
	TargetGeminiVideo  Target = "video-gemini"
	TargetGroqVideo    Target = "video-groq"
	TargetPDFAssistant Target = "pdf-assistant"
)

// Validate reports the first missing or invalid setting required by target.
func (c *Config) Validate(target Target) error {
	switch target {
	case TargetGeminiVideo:
		if c.Gemini.APIKey == "" {
			return core.NewConfigurationError("GOOGLE_API_KEY is required for the Gemini video summarizer", nil)
		}
		return c.validateServer()
	case TargetGroqVideo:
		if c.Groq.APIKey == "" {
			return core.NewConfigurationError("GROQ_API_KEY is required for the Groq video summarizer", nil)
		}
		return c.validateServer()
	case TargetPDFAssistant:
		return c.validateAssistant()
	default:
		return core.NewConfigurationError(fmt.Sprintf("unknown target %q", target), nil)
	}
}

func (c *Config) validateServer() error {
	if c.Server.Port == "" {
		return core.NewConfigurationError("server port is required", nil)
	}
	if c.Video.PollInterval <= 0 || c.Video.ProcessingTimeout <= 0 {
		return core.NewConfigurationError("video poll interval and processing timeout must be positive", nil)
	}
	switch c.Cache.Type {
	case "", "none", "local":
	case "redis":
		if c.Cache.Redis.URL == "" {
			return core.NewConfigurationError("REDIS_URL is required when CACHE_TYPE is redis", nil)
		}
	default:
		return core.NewConfigurationError(fmt.Sprintf("unknown cache type %q", c.Cache.Type), nil)
	}
	return nil
}

func (c *Config) validateAssistant() error {
	if c.Groq.APIKey == "" {
		return core.NewConfigurationError("GROQ_API_KEY is required for the PDF assistant", nil)
	}
	switch c.Knowledge.Embedder {
	case EmbedderGemini:
		if c.Gemini.APIKey == "" {
			return core.NewConfigurationError("GOOGLE_API_KEY is required for the gemini embedder", nil)
		}
	case EmbedderOpenAI:
		if c.OpenAI.APIKey == "" {
			return core.NewConfigurationError("OPENAI_API_KEY is required for the openai embedder", nil)
		}
	default:
		return core.NewConfigurationError(fmt.Sprintf("unknown embedder %q", c.Knowledge.Embedder), nil)
	}
	if len(c.Knowledge.URLs) == 0 {
		return core.NewConfigurationError("at least one knowledge URL is required", nil)
	}
	if c.KnowledgeDatabaseURL() == "" {
		return core.NewConfigurationError("a PostgreSQL URL is required for the knowledge base", nil)
	}
	if c.Knowledge.ChunkSize <= 0 || c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return core.NewConfigurationError("knowledge chunk overlap must be smaller than a positive chunk size", nil)
	}
	switch c.Storage.Type {
	case "postgresql":
		if c.Storage.PostgreSQL.URL == "" {
			return core.NewConfigurationError("DATABASE_URL is required for postgresql storage", nil)
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return core.NewConfigurationError("SQLITE_PATH is required for sqlite storage", nil)
		}
	case "mongodb":
		if c.Storage.MongoDB.URL == "" {
			return core.NewConfigurationError("MONGODB_URL is required for mongodb storage", nil)
		}
	case "memory":
	default:
		return core.NewConfigurationError(fmt.Sprintf("unknown storage type %q", c.Storage.Type), nil)
	}
	return nil
}

// KnowledgeDatabaseURL returns the pgvector database URL.
func (c *Config) KnowledgeDatabaseURL() string {
	if c.Knowledge.DatabaseURL != "" {
		return c.Knowledge.DatabaseURL
	}
	return c.Storage.PostgreSQL.URL
}
