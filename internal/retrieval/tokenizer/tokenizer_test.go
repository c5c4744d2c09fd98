package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lower-cases and splits", "Employment CONTRACT, notice!", []string{"employment", "contract", "notice"}},
		{"drops stop-words", "the employee and the employer", []string{"employee", "employer"}},
		{"drops short tokens", "a b cd 7 42", []string{"cd", "42"}},
		{"folds yo", "Ёлка и ёж", []string{"елка", "еж"}},
		{"russian stop-words", "увольнение по собственному желанию", []string{"увольнение", "собственному", "желанию"}},
		{"empty", "", []string{}},
		{"only punctuation", "?!... --", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Terms(tt.in))
		})
	}
}

func TestTokenizePositionsAreSequential(t *testing.T) {
	tokens := Tokenize("The employee may terminate the contract")
	require.Len(t, tokens, 4)
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	text := "Статья 49. Основания прекращения трудового договора"
	assert.Equal(t, Tokenize(text), Tokenize(text))
}

func TestNormalizeComposesCombiningMarks(t *testing.T) {
	// "е" followed by U+0308 composes to "ё" and then folds to "е".
	assert.Equal(t, "еж", Normalize("ёж"))
}

func TestDecomposedMarksStayInWords(t *testing.T) {
	decomposed := "трудово\u0438\u0306 договор"
	assert.Equal(t, []string{"трудовой", "договор"}, Terms(decomposed))

	spans := Spans(decomposed)
	require.Len(t, spans, 2)
	assert.Equal(t, Span{Term: "трудовой", Start: 0, End: 9}, spans[0])
	assert.Equal(t, 10, spans[1].Start)

	// A stress accent has no composed form and is dropped.
	assert.Equal(t, []string{"уволить"}, Terms("уво\u0301лить"))
}

func TestSpans(t *testing.T) {
	spans := Spans("An Employee, the Contract")
	require.Len(t, spans, 4)
	assert.Equal(t, Span{Term: "an", Start: 0, End: 2}, spans[0])
	assert.Equal(t, Span{Term: "employee", Start: 3, End: 11}, spans[1])
	assert.Equal(t, Span{Term: "contract", Start: 17, End: 25}, spans[3])
}

func TestSpansUseRuneOffsets(t *testing.T) {
	spans := Spans("Трудовой договор")
	require.Len(t, spans, 2)
	assert.Equal(t, 9, spans[1].Start)
	assert.Equal(t, 16, spans[1].End)
}
