package corpus

import (
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/tokenizer"
)

var (
	articleHeading = regexp.MustCompile(`(?im)^[ \t]*((?:статья|article)[ \t]+\d+[^\n]*)$`)
	multiSpace     = regexp.MustCompile(`[ \t]{2,}`)
)

// boilerplatePrefixes open editorial notices, footnotes and tables of
// contents. Compared against normalised text.
var boilerplatePrefixes = []string{
	"сноска",
	"примечание",
	"оглавление",
	"footnote",
	"editorial note",
	"note",
	"table of contents",
}

// boilerplateHeadings are only boilerplate when they make up the whole
// first line; "содержание трудового договора" is real content.
var boilerplateHeadings = map[string]struct{}{
	"содержание": {},
	"contents":   {},
}

// IsBoilerplate reports whether text begins with a recognised editorial
// prefix. Only whole leading words are matched.
func IsBoilerplate(text string) bool {
	head := strings.TrimSpace(tokenizer.Normalize(firstLine(text)))
	if _, ok := boilerplateHeadings[strings.TrimRight(head, ".: ")]; ok {
		return true
	}
	for _, p := range boilerplatePrefixes {
		if !strings.HasPrefix(head, p) {
			continue
		}
		rest := head[len(p):]
		if rest == "" || !isWordByte(rest[0]) {
			return true
		}
	}
	return false
}

// Article is one piece of a law act produced by SplitArticles.
type Article struct {
	Heading string
	Body    string
}

// SplitArticles cleans text and splits it on article headings. Text with
// no headings is returned as a single Article with an empty heading. Text
// before the first heading is dropped, as are articles with an empty body.
func SplitArticles(text string) []Article {
	clean := CleanText(text)
	locs := articleHeading.FindAllStringSubmatchIndex(clean, -1)
	if len(locs) == 0 {
		if clean == "" {
			return nil
		}
		return []Article{{Body: clean}}
	}
	articles := make([]Article, 0, len(locs))
	for i, loc := range locs {
		end := len(clean)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		heading := strings.TrimSpace(clean[loc[2]:loc[3]])
		body := strings.TrimSpace(clean[loc[1]:end])
		if body == "" {
			continue
		}
		articles = append(articles, Article{Heading: heading, Body: body})
	}
	return articles
}

// CleanText drops boilerplate lines and collapses runs of spaces.
func CleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			out = append(out, "")
			continue
		}
		if IsBoilerplate(ln) {
			continue
		}
		out = append(out, multiSpace.ReplaceAllString(ln, " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// SplitRecords replaces each record with one record per article found in
// its text. A record whose text is only boilerplate keeps its title with
// no text, so Build reports it as skipped.
func SplitRecords(items []RawRecord) []RawRecord {
	out := make([]RawRecord, 0, len(items))
	for _, r := range items {
		articles := SplitArticles(r.Text)
		if len(articles) == 0 {
			out = append(out, RawRecord{Index: r.Index, Title: r.Title, Source: r.Source})
			continue
		}
		for _, a := range articles {
			out = append(out, RawRecord{
				Index:  r.Index,
				Title:  joinTitle(r.Title, a.Heading),
				Text:   a.Body,
				Source: r.Source,
			})
		}
	}
	return out
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// isWordByte reports whether b can continue a word. Multi-byte runes are
// treated as word bytes, which is enough to reject "notes" for "note" and
// "содержанием" for "содержание".
func isWordByte(b byte) bool {
	return b >= 0x80 || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
