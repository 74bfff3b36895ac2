package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
	"github.com/dannyJ848/SOMA-sub037/internal/indexer/index"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/ranker"
	apperrors "github.com/dannyJ848/SOMA-sub037/pkg/errors"
)

func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	store, err := corpus.NewStore([]corpus.Entry{
		{
			ID:          "concept-frailty-sarcopenia",
			Category:    corpus.CategoryFrailtyFunction,
			DisplayName: "Frailty and Sarcopenia",
			Levels: map[int]corpus.Level{
				1: {Summary: "Getting weak with age.", Body: "Muscles shrink and falls follow."},
				4: {Body: "Fried phenotype criteria."},
			},
			CrossReferences: []corpus.CrossReference{
				{TargetID: "concept-osteoporosis", Relationship: "related-to"},
				{TargetID: "concept-falls-risk", Relationship: "leads-to"},
			},
		},
		{
			ID:          "concept-falls-risk",
			Category:    corpus.CategoryFallsMobility,
			DisplayName: "Falls Risk",
			Keywords:    []string{"gait"},
		},
		{
			ID:          "concept-delirium",
			Category:    corpus.CategoryCognitiveHealth,
			DisplayName: "Delirium",
			Levels: map[int]corpus.Level{
				2: {Body: "Sudden confusion can follow falls in hospital."},
			},
		},
	})
	require.NoError(t, err)
	ix, err := index.Build(store, nil)
	require.NoError(t, err)
	return New(ix, opts...)
}

func TestGetAndAtLevel(t *testing.T) {
	e := newTestExecutor(t)

	entry, err := e.Get("concept-falls-risk")
	require.NoError(t, err)
	assert.Equal(t, "Falls Risk", entry.DisplayName)

	_, err = e.Get("does-not-exist")
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)

	lvl, err := e.AtLevel("concept-frailty-sarcopenia", 4)
	require.NoError(t, err)
	assert.Equal(t, "Graduate", lvl.Label)

	_, err = e.AtLevel("concept-frailty-sarcopenia", 3)
	assert.ErrorIs(t, err, apperrors.ErrLevelNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatusCode(err))

	_, err = e.AtLevel("nope", 1)
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
}

func TestRelatedSkipsDanglingReferences(t *testing.T) {
	e := newTestExecutor(t)

	related, err := e.Related("concept-frailty-sarcopenia")
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "leads-to", related[0].Relationship)
	assert.Equal(t, "concept-falls-risk", related[0].Entry.ID)

	related, err = e.Related("concept-delirium")
	require.NoError(t, err)
	assert.NotNil(t, related)
	assert.Empty(t, related)

	_, err = e.Related("missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCategories(t *testing.T) {
	e := newTestExecutor(t)

	assert.Equal(t, map[string]int{
		"frailty-function": 1,
		"falls-mobility":   1,
		"cognitive-health": 1,
	}, e.CategoryCounts())

	all := e.Categories()
	assert.Len(t, all, len(corpus.Categories()))
	assert.Equal(t, CategoryCount{Category: "aging-biology", Count: 0}, all[0])
	assert.Equal(t, CategoryCount{Category: "falls-mobility", Count: 1}, all[1])

	assert.Empty(t, e.ByCategory("no-such-category"))
	assert.NotNil(t, e.ByCategory(""))
	assert.Equal(t, 3, e.Count())
}

func TestSearchOrMatchAndPhraseBonus(t *testing.T) {
	e := newTestExecutor(t)

	res := e.Search("falls", 0)
	require.Len(t, res.Results, 3)
	assert.Equal(t, 3, res.TotalHits)
	// named entry first with the phrase bonus, then body matches by corpus order
	assert.Equal(t, ranker.ScoredDoc{EntryID: "concept-falls-risk", Score: 1005}, res.Results[0])
	assert.Equal(t, "concept-frailty-sarcopenia", res.Results[1].EntryID)
	assert.Equal(t, "concept-delirium", res.Results[2].EntryID)
	assert.Equal(t, map[string]int{"falls": 3}, res.TermStats)

	res = e.Search("falls", 1)
	assert.Len(t, res.Results, 1)
	assert.Equal(t, 3, res.TotalHits)
}

func TestSearchPhraseBonusWithoutTokenMatch(t *testing.T) {
	e := newTestExecutor(t, WithExactPhraseBonus(50))

	// "deliri" is not an indexed token but is a substring of a name.
	res := e.Search("Deliri", 10)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ranker.ScoredDoc{EntryID: "concept-delirium", Score: 50}, res.Results[0])
}

func TestExecuteCategoryFilter(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	res, err := e.Execute(ctx, e.Parse("falls").WithCategory("cognitive-health"), 10)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "concept-delirium", res.Results[0].EntryID)
	assert.Equal(t, 1, res.TotalHits)

	res, err = e.Execute(ctx, e.Parse("falls").WithCategory("bogus"), 10)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.NotNil(t, res.Results)
}

func TestExecuteCancelledContext(t *testing.T) {
	e := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, e.Parse("falls"), 10)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestSearchEmptyQueries(t *testing.T) {
	e := newTestExecutor(t)
	for _, q := range []string{"", "   ", "xyznonexistentterm123", "-"} {
		res := e.Search(q, 20)
		assert.NotNil(t, res.Results, q)
		assert.Empty(t, res.Results, q)
	}
}
