// Package tokenizer provides text tokenisation for the retrieval engine.
// It normalises input to NFC, drops combining marks left over after
// composition, lower-cases it, folds look-alike letters,
// splits on non-alphanumeric boundaries and removes stop-words and
// tokens shorter than MinTokenLength.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenLength is the minimum rune length of an emitted token.
const MinTokenLength = 2

var stopWords = map[string]struct{}{
	// English
	"an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "this": {}, "but": {}, "they": {}, "have": {}, "had": {},
	"what": {}, "when": {}, "where": {}, "who": {}, "which": {},
	"their": {}, "if": {}, "each": {}, "do": {}, "not": {}, "no": {},
	"so": {}, "can": {}, "my": {}, "me": {}, "how": {}, "into": {},
	// Russian
	"во": {}, "на": {}, "но": {}, "да": {}, "что": {}, "как": {},
	"ко": {}, "от": {}, "по": {}, "за": {}, "для": {}, "со": {},
	"об": {}, "из": {}, "не": {}, "ни": {}, "ли": {}, "же": {},
	"бы": {}, "то": {}, "это": {}, "или": {}, "при": {}, "над": {},
	"без": {}, "под": {}, "до": {}, "после": {}, "между": {}, "про": {},
	"надо": {}, "мне": {}, "меня": {}, "мой": {}, "если": {},
}

var letterFold = strings.NewReplacer(
	"ё", "е",
)

// Token represents a single normalised term and its position in the
// token sequence.
type Token struct {
	Term     string
	Position int
}

// Span is a normalised word together with its rune offsets in the
// original text. End is exclusive.
type Span struct {
	Term  string
	Start int
	End   int
}

// Tokenize breaks text into a slice of normalised Tokens with stop-words
// and short tokens removed.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(Normalize(text), isSeparator)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if !keep(word) {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms is Tokenize without positions.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// Normalize applies NFC composition, removal of uncomposed nonspacing
// marks (stress accents), lower-casing and letter folding. It does not
// remove punctuation.
func Normalize(text string) string {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Mn)))
	composed, _, err := transform.String(t, text)
	if err != nil {
		composed = norm.NFC.String(text)
	}
	return letterFold.Replace(strings.ToLower(composed))
}

// Spans returns every word of text with its rune offsets. Stop-words are
// kept so that callers can locate any term in the source text.
func Spans(text string) []Span {
	var spans []Span
	start := -1
	runeIdx := 0
	var b strings.Builder
	flush := func(end int) {
		if start >= 0 {
			spans = append(spans, Span{
				Term:  Normalize(b.String()),
				Start: start,
				End:   end,
			})
			b.Reset()
			start = -1
		}
	}
	for _, r := range text {
		if isSeparator(r) {
			flush(runeIdx)
		} else {
			if start < 0 {
				start = runeIdx
			}
			b.WriteRune(r)
		}
		runeIdx++
	}
	flush(runeIdx)
	return spans
}

// IsStopWord reports whether the normalised term is a stop-word.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

func keep(word string) bool {
	if utf8.RuneCountInString(word) < MinTokenLength {
		return false
	}
	return !IsStopWord(word)
}

// isSeparator keeps nonspacing marks inside words so that decomposed
// text splits at the same places as its composed form.
func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
}

// IsWordRune reports whether r belongs to a word.
func IsWordRune(r rune) bool {
	return !isSeparator(r)
}
