package intent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  Intent
	}{
		{"employment english", []string{"employee", "dismissal", "notice"}, Employment},
		{"employment russian", []string{"увольнение", "работника"}, Employment},
		{"tax", []string{"налоговая", "декларация"}, Tax},
		{"short stem exact only", []string{"ип"}, Tax},
		{"short stem not prefix", []string{"ипподром"}, Unknown},
		{"family", []string{"divorce", "alimony"}, Family},
		{"criminal", []string{"кража", "имущества", "уголовная"}, Criminal},
		{"administrative", []string{"штраф"}, Administrative},
		{"property", []string{"apartment", "lease"}, Property},
		{"no hits", []string{"weather"}, Unknown},
		{"empty", nil, Unknown},
		// one hit each: the intent declared first wins.
		{"tie", []string{"tax", "divorce"}, Tax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.terms).Intent)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	terms := []string{"contract", "employee", "tax", "land"}
	first := Classify(terms)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first.Intent, Classify(terms).Intent)
	}
}

func TestNames(t *testing.T) {
	for _, in := range append(All(), Unknown) {
		assert.Equal(t, in, Parse(in.String()))
	}
	assert.Equal(t, "unknown", Intent(99).String())
	assert.Equal(t, Unknown, Parse("bogus"))

	data, err := json.Marshal(struct {
		Intent Intent `json:"intent"`
	}{Tax})
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":"tax"}`, string(data))

	var back struct {
		Intent Intent `json:"intent"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"intent":"family"}`), &back))
	assert.Equal(t, Family, back.Intent)
}
