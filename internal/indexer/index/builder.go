package index

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
	"github.com/dannyJ848/SOMA-sub037/internal/indexer/tokenizer"
	apperrors "github.com/dannyJ848/SOMA-sub037/pkg/errors"
)

type fieldKey struct {
	term  string
	field Field
}

// Build constructs an Index from store. It is pure: the same store and
// tokenizer always produce the same index. A duplicate id aborts the build.
func Build(store *corpus.Store, tok *tokenizer.Tokenizer) (*Index, error) {
	start := time.Now()
	logger := slog.Default().With("component", "index-builder")

	if uint64(store.Len()) > math.MaxUint32 {
		return nil, fmt.Errorf("corpus of %d entries exceeds ordinal range", store.Len())
	}
	if tok == nil {
		tok = tokenizer.New()
	}

	ix := &Index{
		entries:    make([]*corpus.Entry, 0, store.Len()),
		byID:       make(map[string]uint32, store.Len()),
		byCategory: make(map[corpus.Category]*roaring.Bitmap),
		inverted:   make(map[string]PostingList),
		names:      make([][]string, 0, store.Len()),
		tokenizer:  tok,
	}

	for i := 0; i < store.Len(); i++ {
		entry := store.At(i)
		ord := uint32(i)
		if prev, exists := ix.byID[entry.ID]; exists {
			return nil, apperrors.Newf(apperrors.ErrDuplicateEntry, http.StatusInternalServerError,
				"id %q at corpus positions %d and %d", entry.ID, prev, ord)
		}
		ix.byID[entry.ID] = ord
		ix.entries = append(ix.entries, entry)

		bm, ok := ix.byCategory[entry.Category]
		if !ok {
			bm = roaring.New()
			ix.byCategory[entry.Category] = bm
		}
		bm.Add(ord)

		ix.names = append(ix.names, nameKeys(entry))
		ix.stats.Tokens += ix.addEntry(ord, entry)
	}

	for _, bm := range ix.byCategory {
		bm.RunOptimize()
	}

	ix.stats.Entries = len(ix.entries)
	ix.stats.Terms = len(ix.inverted)
	ix.stats.CategoryEntries = make(map[string]int, len(ix.byCategory))
	for c, bm := range ix.byCategory {
		ix.stats.CategoryEntries[string(c)] = int(bm.GetCardinality())
	}
	for _, entry := range ix.entries {
		for _, ref := range entry.CrossReferences {
			if _, ok := ix.byID[ref.TargetID]; !ok {
				ix.stats.DanglingRefs++
				logger.Debug("dangling cross reference",
					"entry_id", entry.ID,
					"target_id", ref.TargetID,
					"relationship", ref.Relationship,
				)
			}
		}
	}

	logger.Info("content index built",
		"entries", ix.stats.Entries,
		"terms", ix.stats.Terms,
		"postings", ix.stats.Postings,
		"tokens", ix.stats.Tokens,
		"categories", len(ix.byCategory),
		"dangling_refs", ix.stats.DanglingRefs,
		"duration", time.Since(start),
	)
	return ix, nil
}

// addEntry tokenizes every indexed field of entry and merges the resulting
// postings. It returns the number of tokens indexed.
func (ix *Index) addEntry(ord uint32, entry *corpus.Entry) int {
	weights := make(map[fieldKey]float64)
	var order []fieldKey
	tokens := 0

	add := func(field Field, text string) {
		for _, term := range ix.tokenizer.Tokenize(text, tokenizer.ModeIndex) {
			key := fieldKey{term: term, field: field}
			if _, seen := weights[key]; !seen {
				order = append(order, key)
			}
			weights[key] += field.Weight()
			tokens++
		}
	}

	add(FieldName, entry.DisplayName)
	for _, alt := range entry.AlternateNames {
		add(FieldName, alt)
	}
	for _, kw := range entry.Keywords {
		add(FieldKeyword, kw)
	}
	for _, tag := range entry.Tags {
		add(FieldKeyword, tag)
	}
	for _, tier := range entry.Tiers() {
		lvl := entry.Levels[tier]
		add(FieldSummary, lvl.Summary)
		add(FieldBody, lvl.Body)
		for _, kt := range lvl.KeyTerms {
			add(FieldBody, kt.Term)
			add(FieldBody, kt.Definition)
		}
	}

	// order is grouped by first appearance; postings for one term must be
	// ordered by field, so emit fields in ascending order per term.
	for field := FieldName; field <= FieldBody; field++ {
		for _, key := range order {
			if key.field != field {
				continue
			}
			ix.inverted[key.term] = append(ix.inverted[key.term], Posting{
				Ordinal: ord,
				EntryID: entry.ID,
				Field:   field,
				Weight:  weights[key],
			})
			ix.stats.Postings++
		}
	}
	return tokens
}

func nameKeys(entry *corpus.Entry) []string {
	keys := make([]string, 0, 1+len(entry.AlternateNames))
	keys = append(keys, strings.ToLower(entry.DisplayName))
	for _, alt := range entry.AlternateNames {
		keys = append(keys, strings.ToLower(alt))
	}
	return keys
}
