package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/synonym"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/sqlite"
)

func readCorpusFile(c *cli.Context, path string) (corpus.Records, error) {
	records, err := (&corpus.FileSource{Path: path}).Read(c.Context)
	if err != nil {
		return corpus.Records{}, err
	}
	for _, s := range records.Skipped {
		fmt.Fprintf(c.App.ErrWriter, "skipped record %d: %s %s\n", s.Index, s.Reason, s.Detail)
	}
	return records, nil
}

func prepareCommand(c *cli.Context) error {
	records, err := readCorpusFile(c, c.String("in"))
	if err != nil {
		return err
	}
	items := records.Items
	if !c.Bool("no-split") {
		items = corpus.SplitRecords(items)
	}
	kept := items[:0:0]
	for _, r := range items {
		if strings.TrimSpace(r.Text) != "" {
			kept = append(kept, r)
		}
	}

	out := c.App.Writer
	if path := c.String("out"); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	if err := corpus.WriteJSONL(out, kept); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "prepared %d records from %d\n", len(kept), len(records.Items))
	return nil
}

func importCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	records, err := readCorpusFile(c, c.String("in"))
	if err != nil {
		return err
	}
	items := records.Items
	if cfg.Corpus.SplitArticles {
		items = corpus.SplitRecords(items)
	}

	switch c.String("to") {
	case config.SourceSQLite:
		client, err := sqlite.New(cfg.SQLite)
		if err != nil {
			return err
		}
		defer client.Close()
		err = client.InTx(c.Context, func(tx *sql.Tx) error {
			return corpus.WriteRecords(c.Context, tx, sqlite.DriverName, items)
		})
		if err != nil {
			return err
		}
	case config.SourcePostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return err
		}
		defer client.Close()
		err = client.InTx(c.Context, func(tx *sql.Tx) error {
			return corpus.WriteRecords(c.Context, tx, postgres.DriverName, items)
		})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown target %q, want sqlite or postgres", c.String("to"))
	}
	fmt.Fprintf(c.App.Writer, "imported %d records into %s\n", len(items), c.String("to"))
	return nil
}

// loadEngine builds an engine over the configured corpus source.
func loadEngine(c *cli.Context) (*retrieval.SearchEngine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	expander, err := synonym.Load(cfg.Synonyms.Path)
	if err != nil {
		return nil, err
	}
	backend, err := retrieval.OpenBackend(cfg)
	if err != nil {
		return nil, err
	}
	defer backend.Close()

	engine := retrieval.New(expander, retrieval.OptionsFromConfig(cfg.Search, cfg.Corpus))
	if _, err := engine.Load(c.Context, backend.Source); err != nil {
		return nil, err
	}
	return engine, nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("usage: lawctl search [flags] <query>")
	}
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	resp := engine.Execute(c.Context, retrieval.Request{
		Query:    query,
		TopK:     c.Int("top-k"),
		MinScore: c.Float64("min-score"),
	})

	switch {
	case c.Bool("json"):
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(resp)
	case c.Bool("context"):
		block := retrieval.RenderContext(resp.Results)
		fmt.Fprintln(c.App.Writer, block.HTML)
		return nil
	default:
		fmt.Fprintln(c.App.Writer, renderResponse(resp))
		return nil
	}
}

func statsCommand(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, renderStats(engine.Stats(), engine.Snapshot().Index.TopTerms(c.Int("top"))))
	return nil
}
