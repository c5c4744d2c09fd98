package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/index"
)

func build(t *testing.T, records ...corpus.RawRecord) (*corpus.Corpus, *index.InvertedIndex) {
	t.Helper()
	for i := range records {
		records[i].Index = i
	}
	c, err := corpus.Build(corpus.Records{Items: records}, corpus.BuildOptions{})
	require.NoError(t, err)
	return c, index.Build(c)
}

func TestTitleMatchOutranksBodyMatch(t *testing.T) {
	c, idx := build(t,
		corpus.RawRecord{Title: "Employee", Text: "alpha beta"},
		corpus.RawRecord{Title: "Gamma", Text: "employee beta"},
	)
	r := New(DefaultParams())
	q := Query{Tokens: []string{"employee"}, Terms: []string{"employee"}}

	a := r.Score(idx, c, q, 0)
	b := r.Score(idx, c, q, 1)
	assert.Greater(t, b, 0.0)
	assert.Greater(t, a, b)
	assert.InDelta(t, b*1.25, a, 1e-9)
}

func TestPhraseBonus(t *testing.T) {
	c, idx := build(t,
		corpus.RawRecord{Title: "A", Text: "employment contract signed by parties"},
		corpus.RawRecord{Title: "B", Text: "contract signed employment by parties"},
	)
	params := DefaultParams()
	r := New(params)
	q := Query{Tokens: []string{"employment", "contract"}, Terms: []string{"contract", "employment"}}

	withPhrase := r.Score(idx, c, q, 0)
	without := r.Score(idx, c, q, 1)
	assert.InDelta(t, params.PhraseWeight, withPhrase-without, 1e-9)
}

func TestNoisePenalty(t *testing.T) {
	c, idx := build(t,
		corpus.RawRecord{Title: "A", Text: "Footnote: contract wording amended"},
		corpus.RawRecord{Title: "B", Text: "Article: contract wording amended"},
	)
	params := DefaultParams()
	params.NoisePenalty = 0.5
	r := New(params)
	q := Query{Tokens: []string{"contract"}, Terms: []string{"contract"}}
	assert.InDelta(t, 0.5, r.Score(idx, c, q, 1)-r.Score(idx, c, q, 0), 1e-9)
}

func TestRankOrderingAndTopK(t *testing.T) {
	c, idx := build(t,
		corpus.RawRecord{Title: "One", Text: "tax"},
		corpus.RawRecord{Title: "Two", Text: "tax"},
		corpus.RawRecord{Title: "Three", Text: "tax tax court"},
		corpus.RawRecord{Title: "Four", Text: "divorce"},
	)
	params := DefaultParams()
	params.RelativeFloor = 0
	r := New(params)
	q := Query{Tokens: []string{"tax"}, Terms: []string{"tax"}}

	got := r.Rank(idx, c, q, 10)
	require.Len(t, got.Results, 3)
	assert.Equal(t, 3, got.Candidates)
	// Equal scores fall back to ascending id.
	assert.Equal(t, got.Results[1].Score, got.Results[2].Score)
	assert.Less(t, got.Results[1].FragmentID, got.Results[2].FragmentID)

	for _, k := range []int{-3, 0, 1, 2} {
		top := r.Rank(idx, c, q, k).Results
		want := k
		if want < 1 {
			want = 1
		}
		assert.Len(t, top, want)
		assert.Equal(t, got.Results[0], top[0])
	}
}

func TestRelativeFloorAndMinScore(t *testing.T) {
	c, idx := build(t,
		corpus.RawRecord{Title: "Tax", Text: "tax tax tax return deadline"},
		corpus.RawRecord{Title: "Other", Text: "deadline"},
	)
	q := Query{Tokens: []string{"tax", "deadline"}, Terms: []string{"deadline", "tax"}}

	loose := DefaultParams()
	loose.RelativeFloor = 0
	assert.Len(t, New(loose).Rank(idx, c, q, 5).Results, 2)

	strict := DefaultParams()
	strict.RelativeFloor = 0.45
	got := New(strict).Rank(idx, c, q, 5).Results
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].FragmentID)

	q.MinScore = 1e6
	assert.Empty(t, New(loose).Rank(idx, c, q, 5).Results)
}

func TestRankNoMatches(t *testing.T) {
	c, idx := build(t, corpus.RawRecord{Title: "A", Text: "tax"})
	r := New(DefaultParams())
	got := r.Rank(idx, c, Query{Tokens: []string{"zebra"}, Terms: []string{"zebra"}}, 5)
	assert.Empty(t, got.Results)
	assert.Zero(t, got.Candidates)
	assert.Zero(t, r.Score(idx, c, Query{Terms: []string{"tax"}}, 42))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.2346, Round(1.23456))
}
