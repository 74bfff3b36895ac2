package contentindex

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
	apperrors "github.com/dannyJ848/SOMA-sub037/pkg/errors"
)

func facetCorpus() []Entry {
	var entries []Entry
	for i := 0; i < 3; i++ {
		entries = append(entries, Entry{
			ID:          fmt.Sprintf("falls-%d", i),
			Category:    corpus.CategoryFallsMobility,
			DisplayName: fmt.Sprintf("Falls topic %d", i),
			Levels:      map[int]Level{1: {Body: "Balance and gait in later life."}},
		})
		// interleave so corpus order differs from grouping order
		for j := 0; j < 2; j++ {
			entries = append(entries, Entry{
				ID:          fmt.Sprintf("cog-%d-%d", i, j),
				Category:    corpus.CategoryCognitiveHealth,
				DisplayName: fmt.Sprintf("Cognition topic %d %d", i, j),
				Levels:      map[int]Level{2: {Body: "Memory and attention."}},
			})
		}
	}
	entries = append(entries, Entry{
		ID:          "cog-last",
		Category:    corpus.CategoryCognitiveHealth,
		DisplayName: "Delirium",
	})
	return entries
}

func mustNew(t testing.TB, entries []Entry) *Index {
	t.Helper()
	ix, err := New(entries, Options{})
	require.NoError(t, err)
	return ix
}

func ids(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestCategoryFacet(t *testing.T) {
	ix := mustNew(t, facetCorpus())

	counts := ix.CategoryCounts()
	assert.Equal(t, map[string]int{"falls-mobility": 3, "cognitive-health": 7}, counts)
	assert.Equal(t, []string{"falls-0", "falls-1", "falls-2"}, ids(ix.ByCategory("falls-mobility")))

	cog := ids(ix.ByCategory("cognitive-health"))
	assert.Len(t, cog, 7)
	assert.Equal(t, "cog-0-0", cog[0])
	assert.Equal(t, "cog-last", cog[6])

	for _, c := range []string{"", "unknown", "FALLS-MOBILITY", "continence"} {
		got := ix.ByCategory(c)
		assert.NotNil(t, got, c)
		assert.Empty(t, got, c)
	}
}

func TestCountConsistency(t *testing.T) {
	for name, ix := range map[string]*Index{
		"facet":    mustNew(t, facetCorpus()),
		"embedded": mustDefault(),
	} {
		t.Run(name, func(t *testing.T) {
			sum := 0
			for _, n := range ix.CategoryCounts() {
				sum += n
			}
			assert.Equal(t, ix.Count(), sum)
			assert.Equal(t, ix.Count(), ix.Stats().Entries)
		})
	}
}

func TestGetCompleteness(t *testing.T) {
	entries := facetCorpus()
	ix := mustNew(t, facetCorpus())
	for _, want := range entries {
		got, err := ix.Get(want.ID)
		require.NoError(t, err, want.ID)
		assert.Equal(t, want.DisplayName, got.DisplayName)
		assert.Equal(t, want.Category, got.Category)
	}
}

func TestEntriesAreIsolatedFromCallers(t *testing.T) {
	input := []Entry{{
		ID:          "continence-basics",
		Category:    corpus.CategoryContinence,
		DisplayName: "Continence Basics",
		Keywords:    []string{"Urge"},
		Levels:      map[int]Level{1: {Summary: "original", KeyTerms: []corpus.KeyTerm{{Term: "urge"}}}},
	}}
	ix := mustNew(t, input)
	assert.Equal(t, "Urge", input[0].Keywords[0], "input is not normalized in place")

	input[0].Levels[1] = Level{Summary: "changed by caller"}
	got, err := ix.Get("continence-basics")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Levels[1].Summary)

	got.Levels[1] = Level{Summary: "changed by reader"}
	got.Keywords[0] = "changed"
	lvl, err := ix.AtLevel("continence-basics", 1)
	require.NoError(t, err)
	lvl.KeyTerms[0].Term = "changed"
	listed := ix.ByCategory("continence")
	listed[0].DisplayName = "changed"

	again, err := ix.Get("continence-basics")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Levels[1].Summary)
	assert.Equal(t, "urge", again.Keywords[0])
	assert.Equal(t, "urge", again.Levels[1].KeyTerms[0].Term)
	assert.Equal(t, "Continence Basics", again.DisplayName)
}

func TestExactIDLookup(t *testing.T) {
	entry, err := Get("concept-frailty-sarcopenia")
	require.NoError(t, err)
	assert.Equal(t, "concept-frailty-sarcopenia", entry.ID)
	assert.Equal(t, corpus.CategoryFrailtyFunction, entry.Category)
	assert.Equal(t, "Frailty and Sarcopenia", entry.DisplayName)

	_, err = Get("does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestExactNamePriority(t *testing.T) {
	ix := mustDefault()
	for _, category := range corpus.Categories() {
		for _, entry := range ix.ByCategory(string(category)) {
			results := ix.Search(entry.DisplayName, 0)
			require.NotEmpty(t, results, entry.DisplayName)
			assert.Equal(t, entry.ID, results[0].EntryID, entry.DisplayName)
		}
	}
}

func TestExactNamePriorityOverContainingName(t *testing.T) {
	ix := mustNew(t, []Entry{
		{
			ID:          "frail-sarc",
			Category:    corpus.CategoryFrailtyFunction,
			DisplayName: "Frailty and Sarcopenia",
			Keywords:    []string{"sarcopenia"},
			Levels:      map[int]Level{1: {Body: "Sarcopenia is the loss of muscle with age."}},
		},
		{
			ID:          "sarc",
			Category:    corpus.CategoryMuscleTissue,
			DisplayName: "Sarcopenia",
		},
	})

	results := ix.Search("Sarcopenia", 0)
	require.Len(t, results, 2)
	assert.Equal(t, "sarc", results[0].EntryID)
	assert.Equal(t, "frail-sarc", results[1].EntryID)
}

func TestMonotonicityOfRelevance(t *testing.T) {
	ix := mustNew(t, []Entry{
		{
			ID:          "body-only",
			Category:    corpus.CategoryContinence,
			DisplayName: "Bladder Health",
			Levels:      map[int]Level{1: {Body: "Urgency and nocturia often come with incontinence."}},
		},
		{
			ID:          "named",
			Category:    corpus.CategoryContinence,
			DisplayName: "Nocturia Management",
		},
	})

	results := ix.Search("nocturia", 0)
	require.Len(t, results, 2)
	assert.Equal(t, "named", results[0].EntryID)
	assert.Equal(t, "body-only", results[1].EntryID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestNameOutranksBodyWithoutBonus(t *testing.T) {
	ix, err := New([]Entry{
		{ID: "b", Category: corpus.CategoryEndOfLife, DisplayName: "Care Planning",
			Levels: map[int]Level{3: {Body: "Hospice referral."}}},
		{ID: "a", Category: corpus.CategoryEndOfLife, DisplayName: "Hospice Care"},
	}, Options{})
	require.NoError(t, err)

	// "hospice referral" is not a name substring, so only field weights decide
	results := ix.Search("hospice referral", 0)
	require.Len(t, results, 2)
	assert.Equal(t, ScoredDoc{EntryID: "a", Score: 5}, results[0])
	assert.Equal(t, ScoredDoc{EntryID: "b", Score: 2}, results[1])
}

func TestSearchTotality(t *testing.T) {
	ix := mustDefault()
	for _, q := range []string{"", "   ", "\t\n", "the of and", "a", "xyznonexistentterm123", "!!!", "日本語"} {
		t.Run(fmt.Sprintf("%q", q), func(t *testing.T) {
			results := ix.Search(q, 20)
			assert.NotNil(t, results)
		})
	}
	assert.Empty(t, ix.Search("", 20))
	assert.Empty(t, ix.Search("   ", 20))
	assert.Empty(t, ix.Search("xyznonexistentterm123", 20))
	assert.Empty(t, SearchDefault("xyznonexistentterm123"))
}

func TestLimitTruncation(t *testing.T) {
	entries := make([]Entry, 0, 60)
	for i := 0; i < 50; i++ {
		body := strings.Repeat("mobility ", 1+i%9)
		entries = append(entries, Entry{
			ID:          fmt.Sprintf("match-%02d", i),
			Category:    corpus.CategoryFallsMobility,
			DisplayName: fmt.Sprintf("Topic %d", i),
			Levels:      map[int]Level{1: {Body: body}},
		})
	}
	for i := 0; i < 10; i++ {
		entries = append(entries, Entry{
			ID:          fmt.Sprintf("other-%02d", i),
			Category:    corpus.CategoryNutritionAging,
			DisplayName: fmt.Sprintf("Nutrition %d", i),
		})
	}
	ix := mustNew(t, entries)

	all := ix.Search("mobility", 0)
	require.Len(t, all, 50)
	top := ix.Search("mobility", 5)
	require.Len(t, top, 5)
	assert.Equal(t, all[:5], top)
	for _, doc := range top {
		assert.Equal(t, 9.0, doc.Score)
	}
	// ties fall back to corpus order
	assert.Equal(t, []string{"match-08", "match-17", "match-26", "match-35", "match-44"},
		[]string{top[0].EntryID, top[1].EntryID, top[2].EntryID, top[3].EntryID, top[4].EntryID})

	assert.Len(t, ix.SearchDefault("mobility"), DefaultLimit)
	assert.Len(t, ix.Search("mobility", -1), 50)
}

func TestSearchDeterminism(t *testing.T) {
	ix := mustDefault()
	for _, q := range []string{"falls", "gait speed", "memory loss dementia", "tissue", "sleep"} {
		first := ix.Search(q, 10)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, ix.Search(q, 10), q)
		}
	}
}

func TestConcurrentReads(t *testing.T) {
	ix := mustDefault()
	want := ix.Search("frailty", 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, want, ix.Search("frailty", 0))
				_ = ix.CategoryCounts()
				_, _ = ix.Get("concept-delirium")
			}
		}()
	}
	wg.Wait()
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	entries := facetCorpus()
	entries = append(entries, entries[0])
	_, err := New(entries, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEntry)
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	_, err := New([]Entry{{ID: "x", Category: "bogus", DisplayName: "X"}}, Options{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidEntry)
}

func TestAtLevelAndRelated(t *testing.T) {
	lvl, err := mustDefault().AtLevel("concept-frailty-sarcopenia", 5)
	require.NoError(t, err)
	assert.Equal(t, "MD/Professional", lvl.Label)

	related, err := mustDefault().Related("concept-hip-fracture")
	require.NoError(t, err)
	for _, r := range related {
		assert.NotEqual(t, "concept-osteoporosis-screening", r.Entry.ID)
	}
}

func TestStemmingOption(t *testing.T) {
	entries := []Entry{{
		ID:          "walk",
		Category:    corpus.CategoryFallsMobility,
		DisplayName: "Assisted Walking",
	}}
	plain := mustNew(t, entries)
	assert.Empty(t, plain.Search("walks", 0))

	stemmed, err := New([]Entry{{
		ID:          "walk",
		Category:    corpus.CategoryFallsMobility,
		DisplayName: "Assisted Walking",
	}}, Options{Stemming: true})
	require.NoError(t, err)
	results := stemmed.Search("walks", 0)
	require.Len(t, results, 1)
	assert.Equal(t, "walk", results[0].EntryID)
}
