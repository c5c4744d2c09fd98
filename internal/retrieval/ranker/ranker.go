// Package ranker scores candidate fragments with BM25 plus title, phrase
// and boilerplate adjustments, and turns the scores into a ranked list.
package ranker

import (
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/index"
)

const (
	minPhraseLen = 2
	maxPhraseLen = 4
)

// Params are the tunable ranking constants.
type Params struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
	// TitleBoost multiplies the base score by 1+TitleBoost per distinct
	// query term found in the title.
	TitleBoost float64 `yaml:"titleBoost"`
	// PhraseWeight is added (n-1) times for every query n-gram found
	// verbatim in the fragment.
	PhraseWeight float64 `yaml:"phraseWeight"`
	NoisePenalty float64 `yaml:"noisePenalty"`
	// RelativeFloor drops results scoring below this share of the best
	// score. Zero disables it.
	RelativeFloor float64 `yaml:"relativeFloor"`
	MinScore      float64 `yaml:"minScore"`
}

func DefaultParams() Params {
	return Params{
		K1:            1.5,
		B:             0.75,
		TitleBoost:    0.25,
		PhraseWeight:  1.5,
		NoisePenalty:  1.0,
		RelativeFloor: 0.45,
	}
}

// Query is the scorer's view of a search request.
type Query struct {
	// Tokens are the original query tokens in order.
	Tokens []string
	// Terms are the synonym-expanded terms, sorted.
	Terms []string
	// MinScore overrides Params.MinScore when positive.
	MinScore float64
}

type ScoredFragment struct {
	FragmentID int     `json:"fragment_id"`
	Score      float64 `json:"score"`
}

// Ranking is the outcome of ranking one query.
type Ranking struct {
	Results []ScoredFragment
	// Candidates is the size of the union candidate set before
	// thresholding.
	Candidates int
}

type Ranker struct {
	params Params
}

func New(params Params) *Ranker {
	return &Ranker{params: params}
}

func (r *Ranker) Params() Params {
	return r.params
}

// Score computes the relevance of fragment id for q. It returns 0 for an
// unknown id.
func (r *Ranker) Score(idx *index.InvertedIndex, c *corpus.Corpus, q Query, id int) float64 {
	f := c.Fragment(id)
	if f == nil {
		return 0
	}
	base := r.bm25(idx, f, q.Terms)
	if base == 0 {
		return 0
	}
	score := base * (1 + r.params.TitleBoost*float64(titleMatches(f, q.Terms)))
	score += r.phraseBonus(f, q.Tokens)
	if corpus.IsBoilerplate(f.Text) {
		score -= r.params.NoisePenalty
	}
	return score
}

// Rank scores the union of candidates for q, applies the score floors and
// returns at most topK results ordered by descending score then ascending
// fragment id. topK below 1 is treated as 1.
func (r *Ranker) Rank(idx *index.InvertedIndex, c *corpus.Corpus, q Query, topK int) Ranking {
	if topK < 1 {
		topK = 1
	}
	candidates := idx.Candidates(q.Terms)
	scored := make([]ScoredFragment, 0, len(candidates))
	best := 0.0
	for _, id := range candidates {
		s := r.Score(idx, c, q, id)
		if s <= 0 {
			continue
		}
		scored = append(scored, ScoredFragment{FragmentID: id, Score: s})
		best = math.Max(best, s)
	}

	floor := r.params.MinScore
	if q.MinScore > 0 {
		floor = q.MinScore
	}
	floor = math.Max(floor, best*r.params.RelativeFloor)
	kept := scored[:0]
	for _, s := range scored {
		if s.Score >= floor {
			kept = append(kept, s)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].FragmentID < kept[j].FragmentID
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}
	return Ranking{Results: kept, Candidates: len(candidates)}
}

func (r *Ranker) bm25(idx *index.InvertedIndex, f *corpus.LawFragment, terms []string) float64 {
	lengthRatio := float64(f.Length()) / idx.AverageLength()
	var score float64
	for _, t := range terms {
		tf := float64(f.TermFrequency[t])
		if tf == 0 {
			continue
		}
		norm := tf + r.params.K1*(1-r.params.B+r.params.B*lengthRatio)
		score += idx.IDF(t) * (tf * (r.params.K1 + 1)) / norm
	}
	return score
}

func (r *Ranker) phraseBonus(f *corpus.LawFragment, tokens []string) float64 {
	if len(tokens) < minPhraseLen || r.params.PhraseWeight == 0 {
		return 0
	}
	haystack := " " + f.Normalized + " "
	var bonus float64
	for n := minPhraseLen; n <= maxPhraseLen && n <= len(tokens); n++ {
		for i := 0; i+n <= len(tokens); i++ {
			phrase := " " + strings.Join(tokens[i:i+n], " ") + " "
			if strings.Contains(haystack, phrase) {
				bonus += r.params.PhraseWeight * float64(n-1)
			}
		}
	}
	return bonus
}

func titleMatches(f *corpus.LawFragment, terms []string) int {
	if len(f.TitleTokens) == 0 {
		return 0
	}
	title := make(map[string]struct{}, len(f.TitleTokens))
	for _, t := range f.TitleTokens {
		title[t] = struct{}{}
	}
	n := 0
	for _, t := range terms {
		if _, ok := title[t]; ok {
			n++
		}
	}
	return n
}

// Round rounds a score to four decimal places for presentation.
func Round(score float64) float64 {
	return math.Round(score*10000) / 10000
}
