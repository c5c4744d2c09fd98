// Package snippet extracts short highlighted excerpts of fragment text
// around query term matches. Output is HTML-escaped and safe to embed.
package snippet

import (
	"html"
	"sort"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/tokenizer"
)

const (
	DefaultMaxLength = 300

	Ellipsis       = "…"
	HighlightOpen  = "<mark>"
	HighlightClose = "</mark>"

	// mergeGap is the largest distance in runes between two windows that
	// are still merged into one span.
	mergeGap = 30
	maxSpans = 3
)

var ellipsisLen = len([]rune(Ellipsis))

type span struct {
	start, end int
	matches    []tokenizer.Span
}

func (s span) length() int { return s.end - s.start }

// Extract returns up to three spans of text around occurrences of terms,
// joined with Ellipsis, with every whole-word match wrapped in highlight
// tags. Lengths are in runes of the plain text. When no term occurs the
// first maxLength runes are returned. The plain length of the result,
// ellipses included, never exceeds maxLength + 2 ellipses.
func Extract(text string, terms []string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	runes := []rune(text)
	matches := findMatches(text, terms)
	if len(matches) == 0 {
		return prefix(runes, maxLength)
	}
	if len(runes) <= maxLength {
		return render(runes, span{start: 0, end: len(runes), matches: matches})
	}

	spans := selectSpans(runes, cluster(matches, len(runes), maxLength/2), maxLength)
	if len(spans) == 0 {
		// Every match is longer than the budget.
		return prefix(runes, maxLength)
	}
	var b strings.Builder
	for i, s := range spans {
		if i > 0 || s.start > 0 {
			b.WriteString(Ellipsis)
		}
		b.WriteString(render(runes, s))
	}
	if last := spans[len(spans)-1]; last.end < len(runes) {
		b.WriteString(Ellipsis)
	}
	return b.String()
}

func findMatches(text string, terms []string) []tokenizer.Span {
	if len(terms) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}
	var out []tokenizer.Span
	for _, s := range tokenizer.Spans(text) {
		if _, ok := want[s.Term]; ok {
			out = append(out, s)
		}
	}
	return out
}

// cluster opens a window of radius runes on each side of every match and
// merges windows that overlap or lie within mergeGap of each other.
func cluster(matches []tokenizer.Span, n, radius int) []span {
	var out []span
	for _, m := range matches {
		start := max(0, m.Start-radius)
		end := min(n, m.End+radius)
		if len(out) > 0 && start <= out[len(out)-1].end+mergeGap {
			cur := &out[len(out)-1]
			cur.end = max(cur.end, end)
			cur.matches = append(cur.matches, m)
			continue
		}
		out = append(out, span{start: start, end: end, matches: []tokenizer.Span{m}})
	}
	return out
}

// selectSpans keeps the densest spans within the length budget and
// returns them in text order.
func selectSpans(runes []rune, spans []span, maxLength int) []span {
	ranked := append([]span(nil), spans...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].matches) > len(ranked[j].matches)
	})
	k := min(maxSpans, len(ranked))
	budget := maxLength - (k-1)*ellipsisLen

	chosen := make([]span, 0, k)
	for _, s := range ranked[:k] {
		if budget <= 0 {
			break
		}
		if s.length() > budget {
			s = trimAround(s, budget)
			if s.length() == 0 {
				continue
			}
		}
		s = snapToWords(runes, s)
		budget -= s.length()
		chosen = append(chosen, s)
	}
	sort.Slice(chosen, func(i, j int) bool { return chosen[i].start < chosen[j].start })
	return chosen
}

// trimAround shrinks s to at most size runes, centred on its first match.
func trimAround(s span, size int) span {
	first := s.matches[0]
	if first.End-first.Start > size {
		return span{start: s.start, end: s.start}
	}
	start := first.Start - (size-(first.End-first.Start))/2
	start = max(s.start, min(start, s.end-size))
	end := start + size
	kept := s.matches[:0:0]
	for _, m := range s.matches {
		if m.Start >= start && m.End <= end {
			kept = append(kept, m)
		}
	}
	return span{start: start, end: end, matches: kept}
}

// snapToWords moves span edges that fall inside a word inwards to the
// word boundary, and drops surrounding whitespace. Matches are never cut.
func snapToWords(runes []rune, s span) span {
	lo, hi := s.end, s.start
	for _, m := range s.matches {
		lo = min(lo, m.Start)
		hi = max(hi, m.End)
	}
	start, end := s.start, s.end
	if start > 0 && isWordRune(runes[start-1]) {
		for start < lo && isWordRune(runes[start]) {
			start++
		}
	}
	if end < len(runes) && isWordRune(runes[end]) {
		for end > hi && isWordRune(runes[end-1]) {
			end--
		}
	}
	for start < lo && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > hi && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return span{start: start, end: end, matches: s.matches}
}

func render(runes []rune, s span) string {
	var b strings.Builder
	pos := s.start
	for _, m := range s.matches {
		if m.Start < pos || m.End > s.end {
			continue
		}
		b.WriteString(html.EscapeString(string(runes[pos:m.Start])))
		b.WriteString(HighlightOpen)
		b.WriteString(html.EscapeString(string(runes[m.Start:m.End])))
		b.WriteString(HighlightClose)
		pos = m.End
	}
	b.WriteString(html.EscapeString(string(runes[pos:s.end])))
	return b.String()
}

func prefix(runes []rune, maxLength int) string {
	if len(runes) <= maxLength {
		return html.EscapeString(string(runes))
	}
	cut := strings.TrimRightFunc(string(runes[:maxLength]), unicode.IsSpace)
	return html.EscapeString(cut) + Ellipsis
}

func isWordRune(r rune) bool {
	return tokenizer.IsWordRune(r)
}
