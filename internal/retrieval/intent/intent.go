// Package intent assigns a coarse legal area to a query. Classification is
// reported next to search results and never influences ranking.
package intent

import (
	"strings"
)

// Intent is a closed set of legal areas.
type Intent int

const (
	Unknown Intent = iota
	Employment
	Tax
	Family
	Criminal
	Administrative
	Civil
	Property
)

var names = [...]string{
	Unknown:        "unknown",
	Employment:     "employment",
	Tax:            "tax",
	Family:         "family",
	Criminal:       "criminal",
	Administrative: "administrative",
	Civil:          "civil",
	Property:       "property",
}

func (i Intent) String() string {
	if i < 0 || int(i) >= len(names) {
		return names[Unknown]
	}
	return names[i]
}

// MarshalText encodes the intent by name.
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText decodes a name written by MarshalText. Unknown names
// decode to Unknown.
func (i *Intent) UnmarshalText(text []byte) error {
	*i = Parse(string(text))
	return nil
}

// Parse returns the intent with the given name, or Unknown.
func Parse(name string) Intent {
	for i, n := range names {
		if n == name {
			return Intent(i)
		}
	}
	return Unknown
}

// All returns every intent except Unknown, in declaration order.
func All() []Intent {
	return []Intent{Employment, Tax, Family, Criminal, Administrative, Civil, Property}
}

// stems are matched as prefixes of normalised query terms. Russian stems
// cover inflected forms without a stemmer.
var stems = map[Intent][]string{
	Employment: {
		"employ", "dismiss", "resign", "salary", "wage", "vacation", "labor", "labour", "overtime",
		"труд", "работ", "увол", "зарплат", "заработн", "отпуск", "сверхуроч",
	},
	Tax: {
		"tax", "vat", "declaration", "deduction", "entrepreneur", "proprietor",
		"налог", "ндс", "декларац", "вычет", "предпринимат", "ип",
	},
	Family: {
		"divorce", "marriage", "alimony", "custody", "child", "spouse",
		"развод", "брак", "алимент", "ребен", "дет", "супруг", "опек",
	},
	Criminal: {
		"crime", "criminal", "theft", "fraud", "murder", "prison", "sentence",
		"преступ", "уголов", "краж", "мошен", "убийств", "лишени",
	},
	Administrative: {
		"administrative", "fine", "penalty", "license", "permit", "offence", "offense",
		"административ", "штраф", "лиценз", "разрешен", "правонаруш",
	},
	Civil: {
		"contract", "damage", "compensation", "obligation", "lawsuit", "claim", "debt", "loan",
		"договор", "ущерб", "возмещ", "обязательств", "иск", "долг", "займ", "кредит",
	},
	Property: {
		"property", "ownership", "land", "apartment", "inherit", "lease", "rent", "mortgage",
		"собствен", "имуществ", "земел", "квартир", "наследств", "аренд", "ипотек",
	},
}

// minStemMatch guards short stems such as "ип" against matching longer
// unrelated words: a stem shorter than this must equal the term.
const minStemMatch = 3

// Result is a classification with the per-intent match counts behind it.
type Result struct {
	Intent Intent         `json:"intent"`
	Scores map[Intent]int `json:"-"`
}

// Classify counts stem hits per intent across terms and returns the
// intent with the most hits. Ties go to the intent declared first; no hits
// yields Unknown.
func Classify(terms []string) Result {
	scores := make(map[Intent]int)
	for _, term := range terms {
		for _, in := range All() {
			if matchesAny(term, stems[in]) {
				scores[in]++
			}
		}
	}
	best, bestScore := Unknown, 0
	for _, in := range All() {
		if scores[in] > bestScore {
			best, bestScore = in, scores[in]
		}
	}
	return Result{Intent: best, Scores: scores}
}

func matchesAny(term string, stems []string) bool {
	for _, s := range stems {
		if len([]rune(s)) < minStemMatch {
			if term == s {
				return true
			}
			continue
		}
		if strings.HasPrefix(term, s) {
			return true
		}
	}
	return false
}
