// Package synonym expands query terms with curated legal synonym groups.
//
// A group is a canonical term plus its synonym phrases. Matching is
// bidirectional: a query that contains the canonical term or any of its
// synonyms pulls in every member of the group. Multi-word phrases match
// when the query contains them as consecutive tokens. Expansion is a union
// and always retains the input tokens.
package synonym

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/tokenizer"
)

// maxPhraseTokens bounds the n-gram length probed against phrase triggers.
const maxPhraseTokens = 4

// TermSet is an unordered set of normalised terms.
type TermSet map[string]struct{}

// NewTermSet builds a TermSet from terms.
func NewTermSet(terms ...string) TermSet {
	s := make(TermSet, len(terms))
	for _, t := range terms {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether term is in the set.
func (s TermSet) Has(term string) bool {
	_, ok := s[term]
	return ok
}

// Sorted returns the members in ascending order.
func (s TermSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Group is one canonical term and its synonym phrases.
type Group struct {
	Canonical string   `yaml:"canonical"`
	Synonyms  []string `yaml:"synonyms"`
}

// Expander is immutable after construction and safe for concurrent use.
type Expander struct {
	// triggers maps a normalised phrase (tokens joined by a single space)
	// to the indexes of the groups it belongs to.
	triggers map[string][]int
	// members holds the normalised tokens of every phrase in a group.
	members [][]string
	groups  []Group
}

// NewExpander indexes groups. Phrases that normalise to no tokens are
// ignored; groups left without any phrase are dropped.
func NewExpander(groups []Group) *Expander {
	e := &Expander{triggers: make(map[string][]int)}
	for _, g := range groups {
		phrases := append([]string{g.Canonical}, g.Synonyms...)
		idx := len(e.members)
		memberSet := make(TermSet)
		registered := false
		for _, phrase := range phrases {
			terms := tokenizer.Terms(phrase)
			if len(terms) == 0 {
				continue
			}
			for _, t := range terms {
				memberSet[t] = struct{}{}
			}
			key := strings.Join(terms, " ")
			if !containsInt(e.triggers[key], idx) {
				e.triggers[key] = append(e.triggers[key], idx)
			}
			registered = true
		}
		if !registered {
			continue
		}
		e.members = append(e.members, memberSet.Sorted())
		e.groups = append(e.groups, g)
	}
	return e
}

// Expand returns the original tokens plus every member of each synonym
// group triggered by a token or by a run of up to four consecutive tokens.
func (e *Expander) Expand(tokens []string) TermSet {
	out := NewTermSet(tokens...)
	if e == nil {
		return out
	}
	for _, idx := range e.matchedGroups(tokens) {
		for _, m := range e.members[idx] {
			out[m] = struct{}{}
		}
	}
	return out
}

// MatchedGroups returns the canonical terms of every group triggered by
// tokens, in table order.
func (e *Expander) MatchedGroups(tokens []string) []string {
	if e == nil {
		return nil
	}
	idxs := e.matchedGroups(tokens)
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = e.groups[idx].Canonical
	}
	return out
}

// Len returns the number of indexed groups.
func (e *Expander) Len() int {
	if e == nil {
		return 0
	}
	return len(e.groups)
}

func (e *Expander) matchedGroups(tokens []string) []int {
	seen := make(map[int]struct{})
	for n := 1; n <= maxPhraseTokens; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			key := strings.Join(tokens[i:i+n], " ")
			for _, idx := range e.triggers[key] {
				seen[idx] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
