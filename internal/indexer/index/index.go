package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
	"github.com/dannyJ848/SOMA-sub037/internal/indexer/tokenizer"
)

// Index is the read-only product of Build. Nothing in it is mutated after
// Build returns, so it is safe for unsynchronised concurrent reads.
type Index struct {
	entries    []*corpus.Entry
	byID       map[string]uint32
	byCategory map[corpus.Category]*roaring.Bitmap
	inverted   map[string]PostingList
	names      [][]string
	tokenizer  *tokenizer.Tokenizer
	stats      Stats
}

// Len is the number of indexed entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Entry returns the entry at a corpus ordinal.
func (ix *Index) Entry(ord uint32) *corpus.Entry {
	return ix.entries[ord]
}

// Lookup resolves an id to its ordinal.
func (ix *Index) Lookup(id string) (uint32, bool) {
	ord, ok := ix.byID[id]
	return ord, ok
}

// Postings returns the posting list for a normalised term, or nil.
func (ix *Index) Postings(term string) PostingList {
	return ix.inverted[term]
}

// CategoryOrdinals returns the ordinals filed under c in ascending order.
func (ix *Index) CategoryOrdinals(c corpus.Category) []uint32 {
	bm, ok := ix.byCategory[c]
	if !ok {
		return nil
	}
	return bm.ToArray()
}

// CategoryBitmap returns a private copy of the ordinal set for c, or nil.
func (ix *Index) CategoryBitmap(c corpus.Category) *roaring.Bitmap {
	bm, ok := ix.byCategory[c]
	if !ok {
		return nil
	}
	return bm.Clone()
}

// CategoryCounts returns the size of every non-empty category bucket.
func (ix *Index) CategoryCounts() map[corpus.Category]int {
	counts := make(map[corpus.Category]int, len(ix.byCategory))
	for c, bm := range ix.byCategory {
		counts[c] = int(bm.GetCardinality())
	}
	return counts
}

// NameKeys returns the lower-cased display and alternate names of an entry.
func (ix *Index) NameKeys(ord uint32) []string {
	return ix.names[ord]
}

func (ix *Index) Tokenizer() *tokenizer.Tokenizer {
	return ix.tokenizer
}

func (ix *Index) Stats() Stats {
	return ix.stats
}

// Snapshot lists every term with its postings, sorted by term. It is used
// for diagnostics and tests, not on the query path.
func (ix *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(ix.inverted))
	for term, postings := range ix.inverted {
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}
