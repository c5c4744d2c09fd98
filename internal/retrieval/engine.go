// Package retrieval is the legal-text search engine. A SearchEngine owns
// an immutable snapshot of the corpus and its inverted index; reloads
// build a new snapshot off to the side and swap it in atomically, so
// searches never observe a partially built index.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/index"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/intent"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/snippet"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/synonym"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/tracing"
)

// Snapshot is one corpus generation together with the index built from
// it. Snapshots are never modified after they are published.
type Snapshot struct {
	Corpus     *corpus.Corpus
	Index      *index.InvertedIndex
	Generation uint64
	LoadedAt   time.Time
	Source     string
}

// Stats describes the current snapshot.
type Stats struct {
	FragmentCount         int       `json:"fragment_count"`
	SkippedCount          int       `json:"skipped_count"`
	Terms                 int       `json:"terms"`
	AverageFragmentLength float64   `json:"average_fragment_length"`
	Generation            uint64    `json:"generation"`
	LoadedAt              time.Time `json:"loaded_at"`
	Source                string    `json:"source,omitempty"`
}

func (s *Snapshot) Stats() Stats {
	st := s.Corpus.Stats()
	return Stats{
		FragmentCount:         st.FragmentCount,
		SkippedCount:          st.SkippedCount,
		Terms:                 s.Index.TermCount(),
		AverageFragmentLength: s.Index.AverageLength(),
		Generation:            s.Generation,
		LoadedAt:              s.LoadedAt,
		Source:                s.Source,
	}
}

// Options configures a SearchEngine.
type Options struct {
	Ranking       ranker.Params
	SnippetLength int
	Build         corpus.BuildOptions
}

func DefaultOptions() Options {
	return Options{
		Ranking:       ranker.DefaultParams(),
		SnippetLength: snippet.DefaultMaxLength,
	}
}

type SearchEngine struct {
	current  atomic.Pointer[Snapshot]
	loaded   atomic.Bool
	expander *synonym.Expander
	ranker   *ranker.Ranker
	opts     Options

	reloadMu sync.Mutex
	hooksMu  sync.RWMutex
	hooks    []func(*Snapshot)
	logger   *slog.Logger
}

// New returns an engine serving an empty corpus until the first Load. A
// nil expander disables synonym expansion.
func New(expander *synonym.Expander, opts Options) *SearchEngine {
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = snippet.DefaultMaxLength
	}
	e := &SearchEngine{
		expander: expander,
		ranker:   ranker.New(opts.Ranking),
		opts:     opts,
		logger:   slog.Default().With("component", "search-engine"),
	}
	empty, _ := corpus.Build(corpus.Records{}, corpus.BuildOptions{})
	e.current.Store(&Snapshot{Corpus: empty, Index: index.Build(empty), LoadedAt: time.Now()})
	return e
}

// OnSwap registers fn to run after every successful snapshot swap.
func (e *SearchEngine) OnSwap(fn func(*Snapshot)) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.hooks = append(e.hooks, fn)
}

// Snapshot returns the snapshot currently being served.
func (e *SearchEngine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Loaded reports whether at least one Load has succeeded.
func (e *SearchEngine) Loaded() bool {
	return e.loaded.Load()
}

// Load reads src, builds a new corpus and index and swaps them in. On
// failure the previous snapshot keeps serving and the error is a
// *corpus.LoadError. A ctx that ends before the swap fails the load. A Load while another is running fails with
// apperrors.ErrReloadInProgress.
func (e *SearchEngine) Load(ctx context.Context, src corpus.Source) (corpus.LoadStats, error) {
	if !e.reloadMu.TryLock() {
		return corpus.LoadStats{}, apperrors.ErrReloadInProgress
	}
	defer e.reloadMu.Unlock()

	start := time.Now()
	c, err := corpus.Load(ctx, src, e.opts.Build)
	if err != nil {
		e.logger.Error("corpus load failed", "source", src.Name(), "error", err)
		return corpus.LoadStats{}, err
	}
	idx := index.Build(c)
	if err := ctx.Err(); err != nil {
		e.logger.Warn("corpus load abandoned before swap", "source", src.Name(), "error", err)
		return corpus.LoadStats{}, &corpus.LoadError{Source: src.Name(), Err: err}
	}
	next := &Snapshot{
		Corpus:     c,
		Index:      idx,
		Generation: e.current.Load().Generation + 1,
		LoadedAt:   time.Now(),
		Source:     src.Name(),
	}
	e.current.Store(next)
	e.loaded.Store(true)

	stats := c.Stats()
	e.logger.Info("corpus loaded",
		"source", src.Name(),
		"generation", next.Generation,
		"fragment_count", stats.FragmentCount,
		"skipped_count", stats.SkippedCount,
		"terms", next.Index.TermCount(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	for _, s := range c.Skipped() {
		e.logger.Debug("record skipped", "index", s.Index, "reason", s.Reason, "detail", s.Detail)
	}

	e.hooksMu.RLock()
	hooks := slices.Clone(e.hooks)
	e.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(next)
	}
	return stats, nil
}

// Request is a search with its optional parameters.
type Request struct {
	Query    string
	TopK     int
	MinScore float64
}

// Result is one ranked fragment. Snippet is HTML-escaped with matches
// wrapped in <mark> tags.
type Result struct {
	ID      int     `json:"id"`
	Title   string  `json:"title"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Response is the full outcome of a search.
type Response struct {
	Query           string        `json:"query"`
	Terms           []string      `json:"terms"`
	Intent          intent.Intent `json:"intent"`
	Generation      uint64        `json:"generation"`
	TotalCandidates int           `json:"total_candidates"`
	Results         []Result      `json:"results"`
}

// Search runs query against the current snapshot and returns at most
// topK results. An empty query or one without matches yields an empty,
// non-nil slice.
func (e *SearchEngine) Search(ctx context.Context, query string, topK int) []Result {
	return e.Execute(ctx, Request{Query: query, TopK: topK}).Results
}

// Execute runs the query pipeline: tokenize, expand, select candidates,
// score, threshold and rank, then extract snippets for the winners only.
func (e *SearchEngine) Execute(ctx context.Context, req Request) *Response {
	snap := e.current.Load()
	resp := &Response{
		Query:      req.Query,
		Terms:      []string{},
		Generation: snap.Generation,
		Results:    []Result{},
	}

	_, span := tracing.StartChildSpan(ctx, "tokenize")
	tokens := tokenizer.Terms(req.Query)
	span.SetAttr("tokens", len(tokens))
	span.End()
	if len(tokens) == 0 {
		return resp
	}

	_, span = tracing.StartChildSpan(ctx, "expand")
	terms := e.expander.Expand(tokens).Sorted()
	resp.Terms = terms
	resp.Intent = intent.Classify(tokens).Intent
	span.SetAttr("terms", len(terms))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "score")
	ranking := e.ranker.Rank(snap.Index, snap.Corpus, ranker.Query{
		Tokens:   tokens,
		Terms:    terms,
		MinScore: req.MinScore,
	}, req.TopK)
	resp.TotalCandidates = ranking.Candidates
	span.SetAttr("candidates", ranking.Candidates)
	span.SetAttr("results", len(ranking.Results))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "snippet")
	for _, sf := range ranking.Results {
		f := snap.Corpus.Fragment(sf.FragmentID)
		resp.Results = append(resp.Results, Result{
			ID:      f.ID,
			Title:   f.Title,
			Source:  f.Source,
			Score:   ranker.Round(sf.Score),
			Snippet: snippet.Extract(f.Text, terms, e.opts.SnippetLength),
		})
	}
	span.End()
	return resp
}

// Stats describes the snapshot currently being served.
func (e *SearchEngine) Stats() Stats {
	return e.current.Load().Stats()
}

// Fragment returns a fragment of the current snapshot by id.
func (e *SearchEngine) Fragment(id int) (*corpus.LawFragment, error) {
	f := e.current.Load().Corpus.Fragment(id)
	if f == nil {
		return nil, fmt.Errorf("fragment %d: %w", id, apperrors.ErrNotFound)
	}
	return f, nil
}
