// Package corpus holds the immutable collection of law fragments the
// retrieval engine searches, and the sources it is loaded from.
package corpus

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/tokenizer"
)

// parallelThreshold is the record count above which fragment preparation
// is spread over a worker pool.
const parallelThreshold = 256

// LawFragment is one indexed unit of legal text. All derived fields are
// computed from Title and Text when the fragment is built and never
// change afterwards.
type LawFragment struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Source string `json:"source"`

	Tokens        []string       `json:"-"`
	TitleTokens   []string       `json:"-"`
	TermFrequency map[string]int `json:"-"`
	// Normalized is the token sequence joined by single spaces, used for
	// phrase matching.
	Normalized string `json:"-"`
}

// Length returns the number of tokens in the fragment.
func (f *LawFragment) Length() int {
	return len(f.Tokens)
}

// Corpus is the ordered, immutable collection of fragments for one
// generation. Fragment IDs equal their index in Fragments.
type Corpus struct {
	fragments []*LawFragment
	skipped   []Skip
}

// Fragments returns the fragments ordered by ID. Callers must not modify
// the returned slice.
func (c *Corpus) Fragments() []*LawFragment {
	if c == nil {
		return nil
	}
	return c.fragments
}

// Fragment returns the fragment with the given id, or nil.
func (c *Corpus) Fragment(id int) *LawFragment {
	if c == nil || id < 0 || id >= len(c.fragments) {
		return nil
	}
	return c.fragments[id]
}

// Len returns the number of fragments.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.fragments)
}

// Skipped returns the records that were not indexed.
func (c *Corpus) Skipped() []Skip {
	if c == nil {
		return nil
	}
	return c.skipped
}

// Stats summarises a load.
func (c *Corpus) Stats() LoadStats {
	return LoadStats{
		FragmentCount: c.Len(),
		SkippedCount:  len(c.Skipped()),
	}
}

// LoadStats is the metadata reported to the caller after a load.
type LoadStats struct {
	FragmentCount int `json:"fragment_count"`
	SkippedCount  int `json:"skipped_count"`
}

// BuildOptions controls fragment preparation.
type BuildOptions struct {
	// SplitArticles splits each record into one fragment per article
	// heading found in its text.
	SplitArticles bool
	// Workers bounds the preparation pool. Zero means GOMAXPROCS.
	Workers int
}

// Build constructs a Corpus from parsed records. Records with blank text
// are skipped and reported; pre-existing skips from parsing are carried
// through. IDs are assigned sequentially in record order. A missing title
// becomes a placeholder numbered by the record's one-based position in
// its source, and placeholders are not indexed.
func Build(records Records, opts BuildOptions) (*Corpus, error) {
	items := records.Items
	if opts.SplitArticles {
		items = SplitRecords(items)
	}

	prepared := make([]*LawFragment, len(items))
	if len(items) > parallelThreshold {
		if err := prepareParallel(items, prepared, opts.Workers); err != nil {
			return nil, err
		}
	} else {
		for i := range items {
			prepared[i] = prepare(items[i])
		}
	}

	c := &Corpus{
		fragments: make([]*LawFragment, 0, len(items)),
		skipped:   append([]Skip(nil), records.Skipped...),
	}
	for i, f := range prepared {
		if f == nil {
			c.skipped = append(c.skipped, Skip{Index: items[i].Index, Reason: ReasonEmptyText})
			continue
		}
		f.ID = len(c.fragments)
		if f.Title == "" {
			f.Title = fmt.Sprintf("Untitled #%d", items[i].Index+1)
		}
		c.fragments = append(c.fragments, f)
	}
	return c, nil
}

// NewFragment builds a single fragment. It returns nil when text is blank.
func NewFragment(id int, title, text, source string) *LawFragment {
	f := prepare(RawRecord{Title: title, Text: text, Source: source})
	if f == nil {
		return nil
	}
	f.ID = id
	if f.Title == "" {
		f.Title = fmt.Sprintf("Untitled #%d", id+1)
	}
	return f
}

func prepare(r RawRecord) *LawFragment {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return nil
	}
	title := strings.TrimSpace(r.Title)
	titleTokens := tokenizer.Terms(title)
	tokens := append(append(make([]string, 0, len(titleTokens)+64), titleTokens...), tokenizer.Terms(text)...)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return &LawFragment{
		Title:         title,
		Text:          text,
		Source:        strings.TrimSpace(r.Source),
		Tokens:        tokens,
		TitleTokens:   titleTokens,
		TermFrequency: tf,
		Normalized:    strings.Join(tokens, " "),
	}
}

func prepareParallel(items []RawRecord, out []*LawFragment, workers int) error {
	size := workers
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return fmt.Errorf("creating fragment pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range items {
		idx := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			out[idx] = prepare(items[idx])
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("submitting record %d: %w", idx, err)
		}
	}
	wg.Wait()
	return nil
}
