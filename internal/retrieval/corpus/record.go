package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/errors"
)

// maxLineSize caps a single JSONL record.
const maxLineSize = 16 << 20

// RawRecord is a validated but not yet tokenised corpus record. Index is
// the record's zero-based position in its source.
type RawRecord struct {
	Index  int
	Title  string
	Text   string
	Source string
}

// SkipReason explains why a record was not indexed.
type SkipReason string

const (
	ReasonNotObject      SkipReason = "not_an_object"
	ReasonMissingText    SkipReason = "missing_text"
	ReasonEmptyText      SkipReason = "empty_text"
	ReasonMalformedField SkipReason = "malformed_field"
	ReasonInvalidJSON    SkipReason = "invalid_json"
)

// Skip records one non-fatal per-record problem.
type Skip struct {
	Index  int        `json:"index"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// Records is the result of parsing a source: the usable records plus the
// ones that were skipped.
type Records struct {
	Items   []RawRecord
	Skipped []Skip
}

func (r *Records) skip(index int, reason SkipReason, detail string) {
	r.Skipped = append(r.Skipped, Skip{Index: index, Reason: reason, Detail: detail})
}

// LoadError reports that a corpus source as a whole could not be read or
// parsed.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading corpus from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is makes every LoadError match apperrors.ErrCorpusUnavailable.
func (e *LoadError) Is(target error) bool {
	return target == apperrors.ErrCorpusUnavailable
}

// IsLoadError reports whether err is or wraps a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// rawFields mirrors the accepted record keys. Both the plain shape
// {title,text,source} and the preprocessed shape
// {law_title,article_title,plain_text,source} are accepted.
type rawFields struct {
	Title        json.RawMessage `json:"title"`
	Text         json.RawMessage `json:"text"`
	Source       json.RawMessage `json:"source"`
	LawTitle     json.RawMessage `json:"law_title"`
	ArticleTitle json.RawMessage `json:"article_title"`
	PlainText    json.RawMessage `json:"plain_text"`
}

// ParseJSON parses a JSON array of record objects. It fails only when the
// document is not an array; malformed elements are skipped.
func ParseJSON(data []byte) (Records, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Records{}, errors.New("corpus document is empty")
	}
	if trimmed[0] != '[' {
		return Records{}, errors.New("corpus document is not a JSON array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return Records{}, fmt.Errorf("decoding corpus array: %w", err)
	}
	var out Records
	for i, elem := range elems {
		parseElement(&out, i, elem)
	}
	return out, nil
}

// ParseJSONL parses one JSON object per line. Blank lines are ignored and
// lines that are not valid JSON are skipped.
func ParseJSONL(data []byte) (Records, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var out Records
	idx := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			out.skip(idx, ReasonInvalidJSON, "")
		} else {
			parseElement(&out, idx, line)
		}
		idx++
	}
	if err := sc.Err(); err != nil {
		return Records{}, fmt.Errorf("scanning corpus lines: %w", err)
	}
	return out, nil
}

func parseElement(out *Records, index int, elem json.RawMessage) {
	trimmed := bytes.TrimSpace(elem)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		out.skip(index, ReasonNotObject, "")
		return
	}
	var f rawFields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		out.skip(index, ReasonNotObject, err.Error())
		return
	}

	textRaw := f.Text
	if isAbsent(textRaw) {
		textRaw = f.PlainText
	}
	if isAbsent(textRaw) {
		out.skip(index, ReasonMissingText, "")
		return
	}
	text, ok := stringField(textRaw)
	if !ok {
		out.skip(index, ReasonMalformedField, "text")
		return
	}
	if strings.TrimSpace(text) == "" {
		out.skip(index, ReasonEmptyText, "")
		return
	}

	title, ok := stringField(f.Title)
	if !ok {
		out.skip(index, ReasonMalformedField, "title")
		return
	}
	if title == "" {
		law, okLaw := stringField(f.LawTitle)
		article, okArticle := stringField(f.ArticleTitle)
		if !okLaw || !okArticle {
			out.skip(index, ReasonMalformedField, "law_title")
			return
		}
		title = joinTitle(law, article)
	}
	source, ok := stringField(f.Source)
	if !ok {
		out.skip(index, ReasonMalformedField, "source")
		return
	}

	out.Items = append(out.Items, RawRecord{
		Index:  index,
		Title:  strings.TrimSpace(title),
		Text:   text,
		Source: strings.TrimSpace(source),
	})
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// stringField decodes an optional string. Absent and null decode to "".
func stringField(raw json.RawMessage) (string, bool) {
	if isAbsent(raw) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func joinTitle(law, article string) string {
	law = strings.TrimSpace(law)
	article = strings.TrimSpace(article)
	switch {
	case law == "":
		return article
	case article == "":
		return law
	default:
		return law + ", " + article
	}
}

type jsonRecord struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// WriteJSONL writes items as JSON Lines readable by ParseJSONL.
func WriteJSONL(w io.Writer, items []RawRecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, r := range items {
		if err := enc.Encode(jsonRecord{Title: r.Title, Text: r.Text, Source: r.Source}); err != nil {
			return fmt.Errorf("encoding record %d: %w", r.Index, err)
		}
	}
	return bw.Flush()
}
