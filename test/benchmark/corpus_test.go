// Package benchmark measures tokenizer, index build and query throughput
// over synthetic corpora of increasing size.
package benchmark

import (
	"fmt"

	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
)

var vocabulary = []string{
	"frailty", "sarcopenia", "falls", "gait", "balance", "delirium",
	"dementia", "memory", "medication", "deprescribing", "protein",
	"senescence", "epithelium", "collagen", "neuron", "muscle",
}

var benchCategories = []corpus.Category{
	corpus.CategoryFrailtyFunction,
	corpus.CategoryFallsMobility,
	corpus.CategoryCognitiveHealth,
	corpus.CategoryPolypharmacy,
	corpus.CategoryMuscleTissue,
}

func word(i int) string {
	return vocabulary[i%len(vocabulary)]
}

// syntheticCorpus returns n entries with five levels each. Names repeat
// every len(vocabulary) entries so phrase bonuses apply to many of them.
func syntheticCorpus(n int) []corpus.Entry {
	entries := make([]corpus.Entry, n)
	for i := range entries {
		levels := make(map[int]corpus.Level, corpus.MaxLevel)
		for tier := corpus.MinLevel; tier <= corpus.MaxLevel; tier++ {
			levels[tier] = corpus.Level{
				Summary: fmt.Sprintf("%s and %s at level %d", word(i+tier), word(i+2*tier), tier),
				Body: fmt.Sprintf("Older adults with %s often show %s, %s and reduced %s over time.",
					word(i), word(i+tier), word(i+3), word(i+5)),
				KeyTerms: []corpus.KeyTerm{{Term: word(i + 7), Definition: "a " + word(i+8) + " concept"}},
			}
		}
		entries[i] = corpus.Entry{
			ID:             fmt.Sprintf("bench-%05d", i),
			Category:       benchCategories[i%len(benchCategories)],
			DisplayName:    fmt.Sprintf("%s %s", word(i), word(i+1)),
			AlternateNames: []string{word(i + 4)},
			Keywords:       []string{word(i + 2), word(i + 6)},
			Tags:           []string{word(i + 9)},
			Levels:         levels,
			CrossReferences: []corpus.CrossReference{
				{TargetID: fmt.Sprintf("bench-%05d", (i+1)%n), Relationship: "related"},
			},
		}
	}
	return entries
}
