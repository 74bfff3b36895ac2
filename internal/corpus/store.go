package corpus

import (
	"context"
	"fmt"
	"log/slog"
)

// Source yields the ordered corpus. Order is significant: it becomes the
// tie-break order for search and the order of category listings.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Entry, error)
}

// Store is the immutable, ordered collection of validated entries.
type Store struct {
	entries []Entry
}

// NewStore validates entries and keeps normalized deep copies, so the
// caller's slice is left untouched and later changes to it are not seen.
func NewStore(entries []Entry) (*Store, error) {
	owned := make([]Entry, len(entries))
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("corpus entry %d: %w", i, err)
		}
		owned[i] = entries[i].Clone()
		owned[i].normalize()
	}
	return &Store{entries: owned}, nil
}

// Open loads src and wraps the result in a Store.
func Open(ctx context.Context, src Source) (*Store, error) {
	entries, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus from %s: %w", src.Name(), err)
	}
	store, err := NewStore(entries)
	if err != nil {
		return nil, fmt.Errorf("validating corpus from %s: %w", src.Name(), err)
	}
	slog.Default().With("component", "corpus").Info("corpus loaded",
		"source", src.Name(),
		"entries", store.Len(),
	)
	return store, nil
}

func (s *Store) Len() int {
	return len(s.entries)
}

// At returns the entry at corpus position i. Callers must not modify it.
func (s *Store) At(i int) *Entry {
	return &s.entries[i]
}
