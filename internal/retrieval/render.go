package retrieval

import (
	"html"
	"math"
	"net/url"
	"strings"
)

// UsedSource is the compact record of a fragment handed to a prompt.
type UsedSource struct {
	Title  string  `json:"title"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// ContextBlock is the rendered hand-off from search results to a prompt
// builder.
type ContextBlock struct {
	HTML string       `json:"html"`
	Used []UsedSource `json:"used"`
}

// RenderContext renders results as one <section> per fragment, in rank
// order. Titles and sources are escaped; snippets are already safe. A
// source is linked only when it is an http(s) URL.
func RenderContext(results []Result) ContextBlock {
	block := ContextBlock{Used: make([]UsedSource, 0, len(results))}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(`<section class="law-fragment">`)
		b.WriteString("<h3>")
		b.WriteString(html.EscapeString(r.Title))
		b.WriteString("</h3>")
		if isWebLink(r.Source) {
			b.WriteString(`<a href="`)
			b.WriteString(html.EscapeString(r.Source))
			b.WriteString(`" target="_blank" rel="noopener">`)
			b.WriteString(html.EscapeString(r.Source))
			b.WriteString("</a>")
		} else if r.Source != "" {
			b.WriteString("<cite>")
			b.WriteString(html.EscapeString(r.Source))
			b.WriteString("</cite>")
		}
		b.WriteString("<p>")
		b.WriteString(r.Snippet)
		b.WriteString("</p></section>\n")

		block.Used = append(block.Used, UsedSource{
			Title:  r.Title,
			Source: r.Source,
			Score:  math.Round(r.Score*100) / 100,
		})
	}
	block.HTML = b.String()
	return block
}

func isWebLink(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
