package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceFile, cfg.Corpus.Source)
	assert.Equal(t, 1.5, cfg.Search.K1)
	assert.Equal(t, 0.45, cfg.Search.RelativeFloor)
	assert.Equal(t, "corpus-reload", cfg.Kafka.Topics.CorpusReload)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
corpus:
  source: sqlite
  splitArticles: true
sqlite:
  path: /tmp/laws.db
search:
  k1: 1.8
redis:
  enabled: true
  cacheTTL: 30s
`), 0o644))
	t.Setenv("LS_SERVER_PORT", "9100")
	t.Setenv("LS_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("LS_ADMIN_KEYS", "k1,k2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, SourceSQLite, cfg.Corpus.Source)
	assert.True(t, cfg.Corpus.SplitArticles)
	assert.Equal(t, 1.8, cfg.Search.K1)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.75, cfg.Search.B)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Admin.Keys)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LS_CORPUS_PATH=from-dotenv.jsonl\nLS_LOGGING_LEVEL=debug\n"), 0o644))
	t.Setenv("LS_LOGGING_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("LS_CORPUS_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.jsonl", cfg.Corpus.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LS_SEARCH_K1", "fast")
	_, err := Load("")
	assert.ErrorContains(t, err, "LS_SEARCH_K1")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"k1 too low", func(c *Config) { c.Search.K1 = 1.0 }, "search.k1"},
		{"b out of range", func(c *Config) { c.Search.B = 1.5 }, "search.b"},
		{"floor of one", func(c *Config) { c.Search.RelativeFloor = 1 }, "search.relativeFloor"},
		{"snippet length", func(c *Config) { c.Search.SnippetLength = 0 }, "search.snippetLength"},
		{"top k", func(c *Config) { c.Search.MaxTopK = 2; c.Search.DefaultTopK = 3 }, "search.defaultTopK"},
		{"unknown source", func(c *Config) { c.Corpus.Source = "s3" }, "corpus.source"},
		{"file without path", func(c *Config) { c.Corpus.Path = "" }, "corpus.path"},
		{"bad format", func(c *Config) { c.Corpus.Format = "xml" }, "corpus.format"},
		{"rate limit", func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.Burst = 0 }, "rateLimit"},
		{"admin without keys", func(c *Config) { c.Admin.Enabled = true }, "admin.keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
	assert.NoError(t, defaultConfig().Validate())
}

func TestPostgresDSN(t *testing.T) {
	dsn := defaultConfig().Postgres.DSN()
	assert.Equal(t, "host=localhost port=5432 user=lawsearch password=localdev dbname=lawsearch sslmode=disable", dsn)
}
