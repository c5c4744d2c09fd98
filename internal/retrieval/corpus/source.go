package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/resilience"
)

// DefaultQuery selects corpus rows from a SQL source. Columns must be
// title, text and source in that order.
const DefaultQuery = `SELECT title, text, source FROM law_fragments ORDER BY id`

// Source supplies the raw records of one corpus generation.
type Source interface {
	Name() string
	Read(ctx context.Context) (Records, error)
}

// Load reads src and builds a Corpus. Failures of the source as a whole
// are returned as *LoadError.
func Load(ctx context.Context, src Source, opts BuildOptions) (*Corpus, error) {
	records, err := src.Read(ctx)
	if err != nil {
		if IsLoadError(err) {
			return nil, err
		}
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	c, err := Build(records, opts)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	return c, nil
}

// Format is the on-disk encoding of a file source.
type Format string

const (
	FormatAuto  Format = ""
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// FileSource reads a JSON array or JSON Lines file.
type FileSource struct {
	Path   string
	Format Format
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

func (s *FileSource) Read(ctx context.Context) (Records, error) {
	if err := ctx.Err(); err != nil {
		return Records{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Records{}, &LoadError{Source: s.Name(), Err: err}
	}
	var records Records
	switch s.format() {
	case FormatJSONL:
		records, err = ParseJSONL(data)
	default:
		records, err = ParseJSON(data)
	}
	if err != nil {
		return Records{}, &LoadError{Source: s.Name(), Err: err}
	}
	return records, nil
}

func (s *FileSource) format() Format {
	if s.Format != FormatAuto {
		return s.Format
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	default:
		return FormatJSON
	}
}

// SQLSource reads records from a database/sql handle. Rows with NULL or
// blank text are skipped.
type SQLSource struct {
	DB     *sql.DB
	Driver string
	Query  string
	Retry  resilience.RetryConfig
}

func (s *SQLSource) Name() string {
	return "sql:" + s.Driver
}

func (s *SQLSource) Read(ctx context.Context) (Records, error) {
	query := s.Query
	if query == "" {
		query = DefaultQuery
	}
	var records Records
	err := resilience.Retry(ctx, "corpus-sql-read", s.Retry, func() error {
		var err error
		records, err = s.readOnce(ctx, query)
		return err
	})
	if err != nil {
		return Records{}, &LoadError{Source: s.Name(), Err: err}
	}
	return records, nil
}

func (s *SQLSource) readOnce(ctx context.Context, query string) (Records, error) {
	start := time.Now()
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return Records{}, fmt.Errorf("querying corpus rows: %w", err)
	}
	defer rows.Close()

	var out Records
	idx := 0
	for rows.Next() {
		var title, text, source sql.NullString
		if err := rows.Scan(&title, &text, &source); err != nil {
			return Records{}, fmt.Errorf("scanning corpus row %d: %w", idx, err)
		}
		switch {
		case !text.Valid:
			out.skip(idx, ReasonMissingText, "")
		case strings.TrimSpace(text.String) == "":
			out.skip(idx, ReasonEmptyText, "")
		default:
			out.Items = append(out.Items, RawRecord{
				Index:  idx,
				Title:  strings.TrimSpace(title.String),
				Text:   text.String,
				Source: strings.TrimSpace(source.String),
			})
		}
		idx++
	}
	if err := rows.Err(); err != nil {
		return Records{}, fmt.Errorf("iterating corpus rows: %w", err)
	}
	slog.Default().With("component", "corpus-source").Debug("sql corpus read",
		"driver", s.Driver,
		"rows", idx,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// StaticSource serves records held in memory.
type StaticSource struct {
	Label   string
	Records Records
}

// NewStaticSource wraps already-validated records. Index is assigned from
// slice position.
func NewStaticSource(label string, items []RawRecord) *StaticSource {
	cp := make([]RawRecord, len(items))
	for i, r := range items {
		r.Index = i
		cp[i] = r
	}
	return &StaticSource{Label: label, Records: Records{Items: cp}}
}

func (s *StaticSource) Name() string {
	return "static:" + s.Label
}

func (s *StaticSource) Read(ctx context.Context) (Records, error) {
	return s.Records, ctx.Err()
}
