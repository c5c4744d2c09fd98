package main

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/index"
)

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// plainSnippet turns an HTML snippet into terminal text, styling the
// marked spans.
func plainSnippet(snippet string) string {
	var b strings.Builder
	rest := snippet
	for {
		start := strings.Index(rest, markOpen)
		if start < 0 {
			b.WriteString(html.UnescapeString(rest))
			break
		}
		b.WriteString(html.UnescapeString(rest[:start]))
		rest = rest[start+len(markOpen):]
		end := strings.Index(rest, markClose)
		if end < 0 {
			b.WriteString(html.UnescapeString(rest))
			break
		}
		b.WriteString(highlightStyle.Render(html.UnescapeString(rest[:end])))
		rest = rest[end+len(markClose):]
	}
	return b.String()
}

func renderResponse(resp *retrieval.Response) string {
	header := dimStyle.Render(fmt.Sprintf("terms: %s  intent: %s  candidates: %d",
		strings.Join(resp.Terms, " "), resp.Intent, resp.TotalCandidates))
	if len(resp.Results) == 0 {
		return header + "\nno matching fragments"
	}
	blocks := make([]string, 0, len(resp.Results)+1)
	blocks = append(blocks, header)
	for i, r := range resp.Results {
		var b strings.Builder
		b.WriteString(titleStyle.Render(fmt.Sprintf("%d. %s", i+1, r.Title)))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("id %d  score %.3f", r.ID, r.Score)))
		if r.Source != "" {
			b.WriteString(dimStyle.Render("  " + r.Source))
		}
		b.WriteString("\n")
		b.WriteString(plainSnippet(r.Snippet))
		blocks = append(blocks, resultBoxStyle.Render(b.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderStats(st retrieval.Stats, top []index.TermEntry) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Corpus"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "source      %s\n", st.Source)
	fmt.Fprintf(&b, "fragments   %d\n", st.FragmentCount)
	fmt.Fprintf(&b, "skipped     %d\n", st.SkippedCount)
	fmt.Fprintf(&b, "terms       %d\n", st.Terms)
	fmt.Fprintf(&b, "avg length  %.1f\n", st.AverageFragmentLength)
	if len(top) > 0 {
		b.WriteString(titleStyle.Render("Top terms"))
		for _, e := range top {
			fmt.Fprintf(&b, "\n%-20s %d", e.Term, len(e.Postings))
		}
	}
	return resultBoxStyle.Render(b.String())
}
