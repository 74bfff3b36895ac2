package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
	"github.com/dannyJ848/SOMA-sub037/internal/indexer/index"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/parser"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/ranker"
	apperrors "github.com/dannyJ848/SOMA-sub037/pkg/errors"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats,omitempty"`
}

// Related is one resolved cross reference.
type Related struct {
	Relationship string        `json:"relationship"`
	Entry        *corpus.Entry `json:"entry"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Executor answers every read against one immutable Index. It holds no
// mutable state and is safe for concurrent use.
type Executor struct {
	index       *index.Index
	phraseBonus float64
	logger      *slog.Logger
}

type Option func(*Executor)

// WithExactPhraseBonus overrides ranker.DefaultExactPhraseBonus.
func WithExactPhraseBonus(bonus float64) Option {
	return func(e *Executor) {
		e.phraseBonus = bonus
	}
}

func New(ix *index.Index, opts ...Option) *Executor {
	e := &Executor{
		index:       ix,
		phraseBonus: ranker.DefaultExactPhraseBonus,
		logger:      slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Index() *index.Index {
	return e.index
}

// Get returns the entry with id or an ErrEntryNotFound AppError. The entry
// is shared with the index and must not be modified.
func (e *Executor) Get(id string) (*corpus.Entry, error) {
	ord, ok := e.index.Lookup(id)
	if !ok {
		return nil, apperrors.NotFound(id)
	}
	return e.index.Entry(ord), nil
}

// AtLevel returns one complexity tier of an entry.
func (e *Executor) AtLevel(id string, tier int) (*corpus.Level, error) {
	entry, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	lvl, ok := entry.Levels[tier]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrLevelNotFound, http.StatusNotFound,
			"entry %q has no level %d", id, tier)
	}
	return &lvl, nil
}

// Related resolves the cross references of id in declaration order.
// References to ids that are not in the index are skipped.
func (e *Executor) Related(id string) ([]Related, error) {
	entry, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	related := make([]Related, 0, len(entry.CrossReferences))
	for _, ref := range entry.CrossReferences {
		ord, ok := e.index.Lookup(ref.TargetID)
		if !ok {
			continue
		}
		related = append(related, Related{
			Relationship: ref.Relationship,
			Entry:        e.index.Entry(ord),
		})
	}
	return related, nil
}

// ByCategory lists the entries of category in corpus order. Unknown or
// empty categories yield an empty, non-nil slice.
func (e *Executor) ByCategory(category string) []*corpus.Entry {
	c, ok := corpus.ParseCategory(category)
	if !ok {
		return []*corpus.Entry{}
	}
	ords := e.index.CategoryOrdinals(c)
	entries := make([]*corpus.Entry, 0, len(ords))
	for _, ord := range ords {
		entries = append(entries, e.index.Entry(ord))
	}
	return entries
}

// CategoryCounts maps every non-empty category to its entry count.
func (e *Executor) CategoryCounts() map[string]int {
	counts := e.index.CategoryCounts()
	out := make(map[string]int, len(counts))
	for c, n := range counts {
		out[string(c)] = n
	}
	return out
}

// Categories lists every known category in declaration order, including
// those with no entries.
func (e *Executor) Categories() []CategoryCount {
	counts := e.index.CategoryCounts()
	all := corpus.Categories()
	out := make([]CategoryCount, 0, len(all))
	for _, c := range all {
		out = append(out, CategoryCount{Category: string(c), Count: counts[c]})
	}
	return out
}

func (e *Executor) Count() int {
	return e.index.Len()
}

// Search tokenizes query and ranks matching entries. limit <= 0 means no
// limit.
func (e *Executor) Search(query string, limit int) *SearchResult {
	return e.run(parser.Parse(query, e.index.Tokenizer()), limit)
}

// Execute runs a parsed plan. It only fails when ctx is already done.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	return e.run(plan, limit), nil
}

// Parse tokenizes query with the index's own tokenizer.
func (e *Executor) Parse(query string) *parser.QueryPlan {
	return parser.Parse(query, e.index.Tokenizer())
}

func (e *Executor) run(plan *parser.QueryPlan, limit int) *SearchResult {
	if plan.Empty() {
		return &SearchResult{
			Query:   plan.RawQuery,
			Results: []ranker.ScoredDoc{},
		}
	}

	postingsPerTerm := make([]index.PostingList, 0, len(plan.Terms))
	termStats := make(map[string]int, len(plan.Terms))
	for _, term := range plan.Terms {
		postings := e.index.Postings(term)
		if len(postings) > 0 {
			postingsPerTerm = append(postingsPerTerm, postings)
			termStats[term] = len(postings)
		}
	}

	scores := ranker.Accumulate(postingsPerTerm)
	bonused := ranker.ApplyPhraseBonus(scores, e.index, plan.Phrase, e.phraseBonus)
	if plan.Category != "" {
		e.restrictToCategory(scores, plan.Category)
	}

	ranked := ranker.Rank(scores, func(ord uint32) string {
		return e.index.Entry(ord).ID
	}, limit)

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"category", plan.Category,
		"candidates", len(scores),
		"phrase_matches", bonused,
		"results", len(ranked),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: len(scores),
		Results:   ranked,
		TermStats: termStats,
	}
}

// restrictToCategory drops every candidate outside category. An unknown
// category removes all of them.
func (e *Executor) restrictToCategory(scores ranker.Scores, category string) {
	var allowed *roaring.Bitmap
	if c, ok := corpus.ParseCategory(category); ok {
		allowed = e.index.CategoryBitmap(c)
	}
	if allowed == nil {
		clear(scores)
		return
	}
	candidates := roaring.New()
	for ord := range scores {
		candidates.Add(ord)
	}
	candidates.AndNot(allowed)
	it := candidates.Iterator()
	for it.HasNext() {
		delete(scores, it.Next())
	}
}
