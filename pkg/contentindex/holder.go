package contentindex

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrNotLoaded is returned by Holder.Current before the first snapshot.
var ErrNotLoaded = errors.New("content index not loaded")

// Holder publishes the active Index snapshot. Readers take the current
// pointer and keep using it for the whole request; Reload builds a
// replacement off to the side and swaps it in atomically, so a snapshot is
// never mutated while it is being read.
type Holder struct {
	current  atomic.Pointer[Index]
	opts     Options
	onSwap   func(*Index)
	reloads  atomic.Int64
	failures atomic.Int64
	logger   *slog.Logger
}

type HolderOption func(*Holder)

// OnSwap registers fn to run after every successful swap, for example to
// refresh gauges or drop cached results.
func OnSwap(fn func(*Index)) HolderOption {
	return func(h *Holder) {
		h.onSwap = fn
	}
}

func NewHolder(opts Options, hopts ...HolderOption) *Holder {
	h := &Holder{
		opts:   opts,
		logger: slog.Default().With("component", "index-holder"),
	}
	for _, o := range hopts {
		o(h)
	}
	return h
}

// Current returns the active snapshot.
func (h *Holder) Current() (*Index, error) {
	ix := h.current.Load()
	if ix == nil {
		return nil, ErrNotLoaded
	}
	return ix, nil
}

// Ready reports whether a snapshot is being served.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

// Store swaps in an already built index.
func (h *Holder) Store(ix *Index) {
	prev := h.current.Swap(ix)
	if h.onSwap != nil {
		h.onSwap(ix)
	}
	attrs := []any{
		"source", ix.Source(),
		"entries", ix.Count(),
		"build_duration", ix.BuildDuration(),
	}
	if prev != nil {
		attrs = append(attrs, "previous_entries", prev.Count())
	}
	h.logger.Info("content index snapshot swapped", attrs...)
}

// Reload builds a new index from src and swaps it in. On failure the
// previous snapshot stays active and the error is returned.
func (h *Holder) Reload(ctx context.Context, src CorpusSource) (*Index, error) {
	h.reloads.Add(1)
	ix, err := Load(ctx, src, h.opts)
	if err != nil {
		h.failures.Add(1)
		h.logger.Error("content index reload failed, keeping previous snapshot",
			"source", src.Name(),
			"error", err,
		)
		return nil, err
	}
	h.Store(ix)
	return ix, nil
}

// ReloadStats returns the number of reload attempts and failures.
func (h *Holder) ReloadStats() (attempts, failures int64) {
	return h.reloads.Load(), h.failures.Load()
}
