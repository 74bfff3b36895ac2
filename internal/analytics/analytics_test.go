package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannyJ848/SOMA-sub037/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    bool
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestAggregatorSearchStats(t *testing.T) {
	agg := NewAggregator()
	agg.Track(Event{Type: EventSearch, Query: "Falls  Risk", TotalHits: 3, LatencyMicros: 100})
	agg.Track(Event{Type: EventSearch, Query: "falls risk", TotalHits: 3, CacheHit: true, LatencyMicros: 20})
	agg.Track(Event{Type: EventZeroResult, Query: "xyz", TotalHits: 0, LatencyMicros: 50})
	agg.Track(Event{Type: EventEntryView, EntryID: "concept-delirium", Found: true})
	agg.Track(Event{Type: EventEntryView, EntryID: "nope", Found: false})
	agg.Track(Event{Type: "unknown"})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(2), stats.EntryViews)
	assert.Equal(t, int64(1), stats.MissingEntryViews)
	assert.Equal(t, []QueryCount{{Query: "falls risk", Count: 2}, {Query: "xyz", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "xyz", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{Query: "concept-delirium", Count: 1}}, stats.TopEntries)
	assert.Equal(t, int64(50), stats.P50LatencyMicros)
	assert.InDelta(t, 56.67, stats.AvgLatencyMicros, 0.01)
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < latencyWindow+10; i++ {
		agg.Track(Event{Type: EventSearch, Query: "q", TotalHits: 1, LatencyMicros: int64(i)})
	}
	agg.mu.Lock()
	n := len(agg.latencies)
	agg.mu.Unlock()
	assert.Equal(t, latencyWindow, n)
}

func TestHandleMessage(t *testing.T) {
	agg := NewAggregator()
	handle := agg.HandleMessage()

	data, err := json.Marshal(Event{Type: EventSearch, Query: "gait", TotalHits: 2})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte("search"), data))
	// bad payloads are acknowledged, not retried
	require.NoError(t, handle(context.Background(), nil, []byte("{not json")))

	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(Event{Type: EventSearch, Query: "a"})
	c.Track(Event{Type: EventSearch, Query: "b"})
	assert.Eventually(t, func() bool { return pub.published() == 2 }, time.Second, 5*time.Millisecond)

	c.Track(Event{Type: EventSearch, Query: "c"})
	cancel()
	c.Close()
	assert.Equal(t, 3, pub.published())
	assert.Equal(t, "search", pub.batches[0][0].Key)
}

func TestCollectorCloseFlushesWithoutCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 10, time.Hour)
	c.Start(context.Background())
	c.Track(Event{Type: EventZeroResult, Query: "xyz"})

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked while the parent context was still live")
	}
	assert.Equal(t, 1, pub.published())

	// never started
	NewCollector(pub, 10, time.Hour).Close()
}

func TestCollectorRequeuesAndDropsOnFailure(t *testing.T) {
	pub := &fakePublisher{fail: true}
	c := NewCollector(pub, 2, time.Hour)

	for i := 0; i < 8; i++ {
		c.Track(Event{Type: EventSearch})
	}
	c.Flush(context.Background())
	assert.Equal(t, 6, c.BufferLen())
	assert.Equal(t, int64(2), c.Dropped())

	pub.fail = false
	c.Flush(context.Background())
	assert.Zero(t, c.BufferLen())
	assert.Equal(t, 6, pub.published())
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Track(Event{Type: EventSearch, Query: "delirium", TotalHits: 1})
	agg.Track(Event{Type: EventZeroResult, Query: "Hearing Aids", TotalHits: 0})
	agg.Track(Event{Type: EventZeroResult, Query: "hearing  aids", TotalHits: 0})
	agg.Track(Event{Type: EventZeroResult, Query: "tinnitus", TotalHits: 0})
	agg.Track(Event{Type: EventEntryView, EntryID: "concept-delirium", Found: true})
	agg.Track(Event{Type: EventEntryView, EntryID: "concept-delirium", Found: true})
	agg.Track(Event{Type: EventEntryView, EntryID: "concept-falls-risk", Found: true})
	agg.Track(Event{Type: EventEntryView, EntryID: "nope", Found: false})

	r := chi.NewRouter()
	NewHandler(agg).Routes(r)
	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/api/v1/analytics")
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(4), stats.TotalSearches)

	rec = get("/api/v1/analytics/zero-results?top=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var gaps ContentGaps
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gaps))
	assert.Equal(t, int64(3), gaps.ZeroResults)
	assert.InDelta(t, 0.75, gaps.ZeroResultRate, 1e-9)
	assert.Equal(t, []QueryCount{{Query: "hearing aids", Count: 2}}, gaps.Queries)

	rec = get("/api/v1/analytics/entries")
	require.Equal(t, http.StatusOK, rec.Code)
	var pop EntryPopularity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pop))
	assert.Equal(t, int64(4), pop.Views)
	assert.Equal(t, int64(1), pop.MissingViews)
	assert.Equal(t, []QueryCount{
		{Query: "concept-delirium", Count: 2},
		{Query: "concept-falls-risk", Count: 1},
	}, pop.Entries)

	assert.Equal(t, http.StatusBadRequest, get("/api/v1/analytics/entries?top=0").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/analytics/zero-results?top=many").Code)
}
