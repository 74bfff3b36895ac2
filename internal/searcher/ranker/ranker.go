package ranker

import (
	"math"
	"sort"
	"strings"

	"github.com/dannyJ848/SOMA-sub037/internal/indexer/index"
)

// DefaultExactPhraseBonus outweighs any realistic sum of field weights, so
// an entry literally named after the query ranks first.
const DefaultExactPhraseBonus = 1000.0

type ScoredDoc struct {
	EntryID string  `json:"entry_id"`
	Score   float64 `json:"score"`
}

// Scores maps a corpus ordinal to its accumulated relevance.
type Scores map[uint32]float64

// Accumulate sums posting weights per ordinal across every matched term.
// A nil or empty list contributes nothing.
func Accumulate(postingsPerTerm []index.PostingList) Scores {
	scores := make(Scores)
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			scores[p.Ordinal] += p.Weight
		}
	}
	return scores
}

// NameSource exposes the lower-cased names of each entry by ordinal.
type NameSource interface {
	Len() int
	NameKeys(ord uint32) []string
}

// ApplyPhraseBonus adds bonus to every entry whose display or alternate name
// contains phrase, and bonus again when a name equals phrase outright, so an
// entry named after the query outranks entries whose names only contain it.
// Entries with no token match still become candidates. It returns the
// number of entries that received a bonus.
func ApplyPhraseBonus(scores Scores, names NameSource, phrase string, bonus float64) int {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" || bonus == 0 {
		return 0
	}
	matched := 0
	for i := 0; i < names.Len(); i++ {
		ord := uint32(i)
		tier := 0
		for _, name := range names.NameKeys(ord) {
			if name == phrase {
				tier = 2
				break
			}
			if strings.Contains(name, phrase) {
				tier = 1
			}
		}
		if tier > 0 {
			scores[ord] += bonus * float64(tier)
			matched++
		}
	}
	return matched
}

// Rank orders scores by descending score, breaking ties by corpus ordinal,
// and truncates to limit when limit > 0. entryID resolves an ordinal to the
// id reported to callers.
func Rank(scores Scores, entryID func(ord uint32) string, limit int) []ScoredDoc {
	var ranked []hit
	if limit > 0 && len(scores) > limit {
		ranked = topK(scores, limit)
	} else {
		ranked = make([]hit, 0, len(scores))
		for ord, score := range scores {
			ranked = append(ranked, hit{ord: ord, score: score})
		}
		sort.Slice(ranked, func(i, j int) bool {
			return ranked[i].before(ranked[j])
		})
	}

	result := make([]ScoredDoc, len(ranked))
	for i, h := range ranked {
		result[i] = ScoredDoc{
			EntryID: entryID(h.ord),
			Score:   math.Round(h.score*10000) / 10000,
		}
	}
	return result
}

type hit struct {
	ord   uint32
	score float64
}

func (h hit) before(o hit) bool {
	if h.score != o.score {
		return h.score > o.score
	}
	return h.ord < o.ord
}
