// Package tracing records in-process span trees for a single request and
// writes them to the structured log when the request finishes. Spans are
// carried through context.Context; a child started without a parent is
// detached and never logged.
package tracing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type spanKey struct{}

type Span struct {
	Name    string
	TraceID string
	Start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	children []*Span
	attrs    map[string]any
}

// StartSpan opens a root span for traceID, usually the request id.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span under the one carried by ctx, if any.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		s := newSpan(name, "")
		return context.WithValue(ctx, spanKey{}, s), s
	}
	s := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.children = append(parent.children, s)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, s), s
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:    name,
		TraceID: traceID,
		Start:   time.Now(),
		attrs:   make(map[string]any),
	}
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the span's duration. Later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.Start)
		s.ended = true
	}
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

// Log writes the tree depth-first at debug level.
func (s *Span) Log() {
	s.LogTo(slog.Default().With("component", "tracing"))
}

func (s *Span) LogTo(logger *slog.Logger) {
	s.log(logger, "", 0)
}

func (s *Span) log(logger *slog.Logger, parent string, depth int) {
	s.mu.Lock()
	args := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_us", s.duration.Microseconds(),
		"depth", depth,
	}
	if parent != "" {
		args = append(args, "parent", parent)
	}
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, s.attrs[k])
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.Debug("span", args...)
	for _, child := range children {
		child.log(logger, s.Name, depth+1)
	}
}
