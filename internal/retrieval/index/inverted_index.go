// Package index builds the read-only inverted index searched by the
// retrieval engine. An InvertedIndex is built once per corpus generation
// and never mutated afterwards, so it is safe for concurrent readers
// without locking.
package index

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
)

type InvertedIndex struct {
	postings  map[string]PostingList
	idf       map[string]float64
	docCount  int
	avgLength float64
	size      int64
}

// Build indexes every fragment of c. Fragments are visited in id order so
// every posting list comes out sorted.
func Build(c *corpus.Corpus) *InvertedIndex {
	idx := &InvertedIndex{
		postings: make(map[string]PostingList),
		idf:      make(map[string]float64),
		docCount: c.Len(),
	}
	var totalLength int
	for _, f := range c.Fragments() {
		totalLength += f.Length()
		for term, freq := range f.TermFrequency {
			idx.postings[term] = append(idx.postings[term], Posting{FragmentID: f.ID, Frequency: freq})
			idx.size += int64(len(term) + 16)
		}
	}
	n := float64(idx.docCount)
	for term, pl := range idx.postings {
		df := float64(len(pl))
		idx.idf[term] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}

	idx.avgLength = 1
	if idx.docCount > 0 {
		idx.avgLength = math.Max(1, float64(totalLength)/n)
	}
	return idx
}

// Postings returns the postings for term, or nil when the term is not
// indexed. Callers must not modify the returned list.
func (idx *InvertedIndex) Postings(term string) PostingList {
	return idx.postings[term]
}

// DocumentFrequency returns the number of fragments containing term.
func (idx *InvertedIndex) DocumentFrequency(term string) int {
	return len(idx.postings[term])
}

// IDF returns the smoothed inverse document frequency of term, or 0 when
// the term is not indexed.
func (idx *InvertedIndex) IDF(term string) float64 {
	return idx.idf[term]
}

// Has reports whether term occurs in at least one fragment.
func (idx *InvertedIndex) Has(term string) bool {
	_, ok := idx.postings[term]
	return ok
}

// Candidates returns the union of the postings of every indexed term in
// terms, as ascending fragment ids.
func (idx *InvertedIndex) Candidates(terms []string) []int {
	seen := make(map[int]struct{})
	for _, t := range terms {
		for _, p := range idx.postings[t] {
			seen[p.FragmentID] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (idx *InvertedIndex) DocCount() int {
	return idx.docCount
}

// AverageLength is the mean fragment token count, never below 1.
func (idx *InvertedIndex) AverageLength() float64 {
	return idx.avgLength
}

// TermCount returns the number of distinct indexed terms.
func (idx *InvertedIndex) TermCount() int {
	return len(idx.postings)
}

// Size is a rough estimate of the index's memory footprint in bytes.
func (idx *InvertedIndex) Size() int64 {
	return idx.size
}

// Snapshot returns every term with its postings, sorted by term.
func (idx *InvertedIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(idx.postings))
	for term, pl := range idx.postings {
		entries = append(entries, TermEntry{Term: term, Postings: pl})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// TopTerms returns up to n terms with the highest document frequency,
// ties broken alphabetically.
func (idx *InvertedIndex) TopTerms(n int) []TermEntry {
	entries := idx.Snapshot()
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].Postings) > len(entries[j].Postings)
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
