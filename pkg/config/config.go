// Package config loads and validates the search service configuration from
// YAML files, an optional .env file and LS_* environment overrides. It
// provides typed structs for every subsystem (Server, Corpus, Search,
// Postgres, SQLite, Kafka, Redis, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Search    SearchConfig    `yaml:"search"`
	Synonyms  SynonymsConfig  `yaml:"synonyms"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// Corpus source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// CorpusConfig selects where law fragments are loaded from.
type CorpusConfig struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	// Format is "json", "jsonl" or empty to pick by file extension.
	Format        string `yaml:"format"`
	Query         string `yaml:"query"`
	SplitArticles bool   `yaml:"splitArticles"`
	Workers       int    `yaml:"workers"`
	// AllowEmpty keeps the service running on an empty corpus when the
	// startup load fails.
	AllowEmpty  bool          `yaml:"allowEmpty"`
	LoadTimeout time.Duration `yaml:"loadTimeout"`
	LoadRetries int           `yaml:"loadRetries"`
}

// SearchConfig holds ranking constants and request limits.
type SearchConfig struct {
	DefaultTopK   int     `yaml:"defaultTopK"`
	MaxTopK       int     `yaml:"maxTopK"`
	SnippetLength int     `yaml:"snippetLength"`
	K1            float64 `yaml:"k1"`
	B             float64 `yaml:"b"`
	TitleBoost    float64 `yaml:"titleBoost"`
	PhraseWeight  float64 `yaml:"phraseWeight"`
	NoisePenalty  float64 `yaml:"noisePenalty"`
	RelativeFloor float64 `yaml:"relativeFloor"`
	MinScore      float64 `yaml:"minScore"`
}

// SynonymsConfig points at a YAML synonym table. Empty uses the built-in
// table.
type SynonymsConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig holds the SQLite database file settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
	CorpusReload    string `yaml:"corpusReload"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// AnalyticsConfig controls search event collection.
type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"bufferSize"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	// TopN bounds the top and zero-result query lists.
	TopN int `yaml:"topN"`
	// SnapshotInterval persists aggregated stats to the SQL store; zero
	// disables persistence.
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	MaxAge         time.Duration `yaml:"maxAge"`
}

// RateLimitConfig is a per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// AdminConfig guards corpus reload and cache invalidation. Keys are raw
// admin keys accepted in addition to those stored in the SQL backend.
type AdminConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load builds a Config from defaults, the YAML file at path (if any), a
// .env file in the working directory (if any) and LS_* environment
// variables, in that order of increasing precedence. Variables already set
// in the environment win over .env values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	s := c.Search
	if s.K1 < 1.2 || s.K1 > 2.0 {
		errs = append(errs, fmt.Errorf("search.k1 must be within [1.2, 2.0], got %v", s.K1))
	}
	if s.B < 0 || s.B > 1 {
		errs = append(errs, fmt.Errorf("search.b must be within [0, 1], got %v", s.B))
	}
	if s.RelativeFloor < 0 || s.RelativeFloor >= 1 {
		errs = append(errs, fmt.Errorf("search.relativeFloor must be within [0, 1), got %v", s.RelativeFloor))
	}
	if s.MinScore < 0 {
		errs = append(errs, fmt.Errorf("search.minScore must not be negative, got %v", s.MinScore))
	}
	if s.SnippetLength <= 0 {
		errs = append(errs, fmt.Errorf("search.snippetLength must be positive, got %d", s.SnippetLength))
	}
	if s.DefaultTopK < 1 || s.MaxTopK < s.DefaultTopK {
		errs = append(errs, fmt.Errorf("search.defaultTopK must be >= 1 and <= maxTopK, got %d/%d", s.DefaultTopK, s.MaxTopK))
	}
	switch c.Corpus.Source {
	case SourceFile:
		if c.Corpus.Path == "" {
			errs = append(errs, errors.New("corpus.path is required for a file source"))
		}
	case SourcePostgres:
	case SourceSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required for a sqlite source"))
		}
	default:
		errs = append(errs, fmt.Errorf("corpus.source must be one of file, postgres, sqlite, got %q", c.Corpus.Source))
	}
	switch c.Corpus.Format {
	case "", "json", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("corpus.format must be json or jsonl, got %q", c.Corpus.Format))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("rateLimit.requestsPerSecond and rateLimit.burst must be positive"))
	}
	if c.Admin.Enabled && len(c.Admin.Keys) == 0 && c.Corpus.Source == SourceFile {
		errs = append(errs, errors.New("admin.keys is required when admin is enabled with a file source"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Corpus: CorpusConfig{
			Source:      SourceFile,
			Path:        "laws/laws.json",
			LoadTimeout: 2 * time.Minute,
			LoadRetries: 3,
		},
		Search: SearchConfig{
			DefaultTopK:   5,
			MaxTopK:       50,
			SnippetLength: 300,
			K1:            1.5,
			B:             0.75,
			TitleBoost:    0.25,
			PhraseWeight:  1.5,
			NoisePenalty:  1.0,
			RelativeFloor: 0.45,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "lawsearch",
			User:            "lawsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path:         "data/laws.db",
			MaxOpenConns: 1,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "lawsearch",
			Topics: KafkaTopics{
				AnalyticsEvents: "search-analytics",
				CorpusReload:    "corpus-reload",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			BufferSize:    1024,
			BatchSize:     50,
			FlushInterval: 2 * time.Second,
			TopN:          10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			MaxAge:         10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads LS_* environment variables and overrides the
// corresponding config fields. Unparseable numbers are reported.
func applyEnvOverrides(cfg *Config) error {
	o := overrides{}
	o.int("LS_SERVER_PORT", &cfg.Server.Port)
	o.str("LS_CORPUS_SOURCE", &cfg.Corpus.Source)
	o.str("LS_CORPUS_PATH", &cfg.Corpus.Path)
	o.str("LS_CORPUS_FORMAT", &cfg.Corpus.Format)
	o.str("LS_CORPUS_QUERY", &cfg.Corpus.Query)
	o.boolean("LS_CORPUS_SPLIT_ARTICLES", &cfg.Corpus.SplitArticles)
	o.boolean("LS_CORPUS_ALLOW_EMPTY", &cfg.Corpus.AllowEmpty)
	o.int("LS_SEARCH_DEFAULT_TOP_K", &cfg.Search.DefaultTopK)
	o.int("LS_SEARCH_MAX_TOP_K", &cfg.Search.MaxTopK)
	o.int("LS_SEARCH_SNIPPET_LENGTH", &cfg.Search.SnippetLength)
	o.float("LS_SEARCH_K1", &cfg.Search.K1)
	o.float("LS_SEARCH_B", &cfg.Search.B)
	o.float("LS_SEARCH_RELATIVE_FLOOR", &cfg.Search.RelativeFloor)
	o.float("LS_SEARCH_MIN_SCORE", &cfg.Search.MinScore)
	o.str("LS_SYNONYMS_PATH", &cfg.Synonyms.Path)
	o.str("LS_POSTGRES_HOST", &cfg.Postgres.Host)
	o.int("LS_POSTGRES_PORT", &cfg.Postgres.Port)
	o.str("LS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	o.str("LS_POSTGRES_USER", &cfg.Postgres.User)
	o.str("LS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	o.str("LS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	o.str("LS_SQLITE_PATH", &cfg.SQLite.Path)
	o.boolean("LS_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("LS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	o.boolean("LS_REDIS_ENABLED", &cfg.Redis.Enabled)
	o.str("LS_REDIS_ADDR", &cfg.Redis.Addr)
	o.str("LS_REDIS_PASSWORD", &cfg.Redis.Password)
	if v := os.Getenv("LS_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	o.boolean("LS_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	o.boolean("LS_RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	o.boolean("LS_ADMIN_ENABLED", &cfg.Admin.Enabled)
	if v := os.Getenv("LS_ADMIN_KEYS"); v != "" {
		cfg.Admin.Keys = splitList(v)
	}
	o.str("LS_LOGGING_LEVEL", &cfg.Logging.Level)
	o.str("LS_LOGGING_FORMAT", &cfg.Logging.Format)
	o.boolean("LS_TRACING_ENABLED", &cfg.Tracing.Enabled)
	o.boolean("LS_METRICS_ENABLED", &cfg.Metrics.Enabled)
	o.int("LS_METRICS_PORT", &cfg.Metrics.Port)
	if len(o.errs) > 0 {
		return fmt.Errorf("applying environment overrides: %w", errors.Join(o.errs...))
	}
	return nil
}

type overrides struct {
	errs []error
}

func (o *overrides) str(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (o *overrides) int(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			o.errs = append(o.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (o *overrides) float(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			o.errs = append(o.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (o *overrides) boolean(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			o.errs = append(o.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
