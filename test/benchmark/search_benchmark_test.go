package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/index"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/snippet"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/synonym"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/tokenizer"
)

var benchQueries = []string{
	"employee contract termination",
	"tax declaration proprietor registration",
	"divorce alimony court",
	"трудовой договор работник",
}

func loadedEngine(b *testing.B, n int) *retrieval.SearchEngine {
	b.Helper()
	e := retrieval.New(synonym.NewExpander(synonym.DefaultTable().Groups), retrieval.DefaultOptions())
	if _, err := e.Load(context.Background(), corpus.NewStaticSource("bench", syntheticRecords(n))); err != nil {
		b.Fatal(err)
	}
	return e
}

// BenchmarkRank measures scoring and sorting of the candidate set.
func BenchmarkRank(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		c := buildCorpus(b, n)
		idx := index.Build(c)
		r := ranker.New(ranker.DefaultParams())
		tokens := tokenizer.Terms(benchQueries[0])
		q := ranker.Query{Tokens: tokens, Terms: tokens}
		b.Run(fmt.Sprintf("fragments_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = r.Rank(idx, c, q, 10)
			}
		})
	}
}

// BenchmarkSearch measures the full pipeline: tokenize, expand, rank and
// snippet.
func BenchmarkSearch(b *testing.B) {
	e := loadedEngine(b, 10000)
	ctx := context.Background()
	for _, topK := range []int{1, 5, 20} {
		b.Run(fmt.Sprintf("top_%d", topK), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = e.Search(ctx, benchQueries[i%len(benchQueries)], topK)
			}
		})
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	e := loadedEngine(b, 10000)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = e.Search(ctx, benchQueries[i%len(benchQueries)], 5)
			i++
		}
	})
}

func BenchmarkSnippet(b *testing.B) {
	text := strings.Repeat("The employer shall give the employee written notice before termination of the employment contract. ", 30)
	terms := []string{"employee", "termination", "contract"}
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = snippet.Extract(text, terms, 300)
	}
}
