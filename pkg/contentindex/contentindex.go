// Package contentindex is the library surface over the educational content
// index. An Index is built once from a corpus and is then read-only; every
// query is a pure read and safe to call from many goroutines. Entries handed
// in are copied, and entries handed out are copies, so no caller can change
// an index after it is built.
//
// Callers that want the bundled sample corpus use the package-level
// functions, which build a default index on first use. Services that load
// their corpus from elsewhere construct an Index with New or hold one in a
// Holder for atomic reloads.
package contentindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
	"github.com/dannyJ848/SOMA-sub037/internal/indexer/index"
	"github.com/dannyJ848/SOMA-sub037/internal/indexer/tokenizer"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/executor"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/ranker"
)

// DefaultLimit is the result count used by SearchDefault.
const DefaultLimit = 20

type (
	Entry         = corpus.Entry
	Level         = corpus.Level
	ScoredDoc     = ranker.ScoredDoc
	SearchResult  = executor.SearchResult
	Related       = executor.Related
	CategoryCount = executor.CategoryCount
	Stats         = index.Stats
	CorpusSource  = corpus.Source
)

// Options configures index construction and ranking.
type Options struct {
	Stemming         bool
	ExactPhraseBonus float64
}

// Index is an immutable, searchable snapshot of one corpus.
type Index struct {
	exec      *executor.Executor
	builtAt   time.Time
	source    string
	buildTime time.Duration
	seq       uint64
}

var builds atomic.Uint64

// New indexes entries in the order given. It fails on invalid entries and
// on duplicate ids.
func New(entries []Entry, opts Options) (*Index, error) {
	store, err := corpus.NewStore(entries)
	if err != nil {
		return nil, err
	}
	return build(store, "inline", opts)
}

// Load reads src and indexes it.
func Load(ctx context.Context, src CorpusSource, opts Options) (*Index, error) {
	store, err := corpus.Open(ctx, src)
	if err != nil {
		return nil, err
	}
	return build(store, src.Name(), opts)
}

func build(store *corpus.Store, source string, opts Options) (*Index, error) {
	start := time.Now()
	var tokOpts []tokenizer.Option
	if opts.Stemming {
		tokOpts = append(tokOpts, tokenizer.WithStemming())
	}
	ix, err := index.Build(store, tokenizer.New(tokOpts...))
	if err != nil {
		return nil, fmt.Errorf("building content index from %s: %w", source, err)
	}
	var execOpts []executor.Option
	if opts.ExactPhraseBonus > 0 {
		execOpts = append(execOpts, executor.WithExactPhraseBonus(opts.ExactPhraseBonus))
	}
	return &Index{
		exec:      executor.New(ix, execOpts...),
		builtAt:   time.Now(),
		source:    source,
		buildTime: time.Since(start),
		seq:       builds.Add(1),
	}, nil
}

// Get returns a copy of the entry with id, or an error matching
// errors.ErrEntryNotFound.
func (x *Index) Get(id string) (*Entry, error) {
	e, err := x.exec.Get(id)
	if err != nil {
		return nil, err
	}
	c := e.Clone()
	return &c, nil
}

// AtLevel returns a copy of one tier of an entry.
func (x *Index) AtLevel(id string, tier int) (*Level, error) {
	lvl, err := x.exec.AtLevel(id, tier)
	if err != nil {
		return nil, err
	}
	c := lvl.Clone()
	return &c, nil
}

// Related resolves an entry's cross references, skipping dangling ones.
func (x *Index) Related(id string) ([]Related, error) {
	related, err := x.exec.Related(id)
	if err != nil {
		return nil, err
	}
	out := make([]Related, len(related))
	for i, r := range related {
		c := r.Entry.Clone()
		out[i] = Related{Relationship: r.Relationship, Entry: &c}
	}
	return out, nil
}

// ByCategory returns copies of the entries of category in corpus order. It
// never fails; an unknown category yields an empty slice.
func (x *Index) ByCategory(category string) []*Entry {
	entries := x.exec.ByCategory(category)
	out := make([]*Entry, len(entries))
	for i, e := range entries {
		c := e.Clone()
		out[i] = &c
	}
	return out
}

func (x *Index) CategoryCounts() map[string]int {
	return x.exec.CategoryCounts()
}

func (x *Index) Categories() []CategoryCount {
	return x.exec.Categories()
}

func (x *Index) Count() int {
	return x.exec.Count()
}

// Search ranks entries against query. limit <= 0 returns every match.
func (x *Index) Search(query string, limit int) []ScoredDoc {
	return x.exec.Search(query, limit).Results
}

// SearchDefault is Search with DefaultLimit.
func (x *Index) SearchDefault(query string) []ScoredDoc {
	return x.Search(query, DefaultLimit)
}

// Executor exposes the query engine for transports that need plans,
// category filters or hit totals.
func (x *Index) Executor() *executor.Executor {
	return x.exec
}

func (x *Index) Stats() Stats {
	return x.exec.Index().Stats()
}

// Source names the corpus source the index was built from.
func (x *Index) Source() string {
	return x.source
}

func (x *Index) BuiltAt() time.Time {
	return x.builtAt
}

// Generation identifies this snapshot: its build time plus a per-process
// build counter, so two builds in the same clock tick still differ. Result
// caches key on it so that results computed against one snapshot are never
// served from another.
func (x *Index) Generation() string {
	return fmt.Sprintf("%s/%d", x.builtAt.UTC().Format(time.RFC3339Nano), x.seq)
}

func (x *Index) BuildDuration() time.Duration {
	return x.buildTime
}

var (
	defaultOnce  sync.Once
	defaultIndex *Index
	defaultErr   error
)

// Default returns the index over the embedded sample corpus, building it on
// first call. A corrupt embedded corpus is a build defect, so the error is
// sticky.
func Default() (*Index, error) {
	defaultOnce.Do(func() {
		defaultIndex, defaultErr = Load(context.Background(), corpus.Embedded(), Options{})
	})
	return defaultIndex, defaultErr
}

func mustDefault() *Index {
	ix, err := Default()
	if err != nil {
		panic(fmt.Sprintf("contentindex: embedded corpus: %v", err))
	}
	return ix
}

// Get looks up id in the default index.
func Get(id string) (*Entry, error) {
	return mustDefault().Get(id)
}

func ByCategory(category string) []*Entry {
	return mustDefault().ByCategory(category)
}

func CategoryCounts() map[string]int {
	return mustDefault().CategoryCounts()
}

func Count() int {
	return mustDefault().Count()
}

// Search queries the default index. limit <= 0 returns every match.
func Search(query string, limit int) []ScoredDoc {
	return mustDefault().Search(query, limit)
}

// SearchDefault queries the default index with DefaultLimit.
func SearchDefault(query string) []ScoredDoc {
	return mustDefault().SearchDefault(query)
}
