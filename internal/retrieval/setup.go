package retrieval

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/sqlite"
)

// OptionsFromConfig maps the search and corpus sections onto engine
// options.
func OptionsFromConfig(s config.SearchConfig, c config.CorpusConfig) Options {
	return Options{
		Ranking: ranker.Params{
			K1:            s.K1,
			B:             s.B,
			TitleBoost:    s.TitleBoost,
			PhraseWeight:  s.PhraseWeight,
			NoisePenalty:  s.NoisePenalty,
			RelativeFloor: s.RelativeFloor,
			MinScore:      s.MinScore,
		},
		SnippetLength: s.SnippetLength,
		Build: corpus.BuildOptions{
			SplitArticles: c.SplitArticles,
			Workers:       c.Workers,
		},
	}
}

// Backend is the configured corpus source together with the database
// handle behind it, if any.
type Backend struct {
	Source corpus.Source
	// DB and Driver are set for SQL sources.
	DB     *sql.DB
	Driver string
	// Check probes the database; nil for file sources.
	Check health.Check
	close func() error
}

// OpenBackend opens the source selected by cfg.Corpus.Source.
func OpenBackend(cfg *config.Config) (*Backend, error) {
	retry := resilience.RetryConfig{MaxAttempts: cfg.Corpus.LoadRetries}
	switch cfg.Corpus.Source {
	case config.SourcePostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("opening postgres corpus: %w", err)
		}
		return &Backend{
			Source: &corpus.SQLSource{DB: client.DB, Driver: postgres.DriverName, Query: cfg.Corpus.Query, Retry: retry},
			DB:     client.DB,
			Driver: postgres.DriverName,
			Check:  client.Check,
			close:  client.Close,
		}, nil
	case config.SourceSQLite:
		client, err := sqlite.New(cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite corpus: %w", err)
		}
		return &Backend{
			Source: &corpus.SQLSource{DB: client.DB, Driver: sqlite.DriverName, Query: cfg.Corpus.Query, Retry: retry},
			DB:     client.DB,
			Driver: sqlite.DriverName,
			Check:  client.Check,
			close:  client.Close,
		}, nil
	default:
		return &Backend{
			Source: &corpus.FileSource{Path: cfg.Corpus.Path, Format: corpus.Format(cfg.Corpus.Format)},
			close:  func() error { return nil },
		}, nil
	}
}

func (b *Backend) Close() error {
	return b.close()
}

// Ping runs Check when the backend has one.
func (b *Backend) Ping(ctx context.Context) health.ComponentHealth {
	if b.Check == nil {
		return health.ComponentHealth{Status: health.StatusUp, Message: b.Source.Name()}
	}
	return b.Check(ctx)
}
