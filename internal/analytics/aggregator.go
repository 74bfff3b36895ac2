package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dannyJ848/SOMA-sub037/pkg/kafka"
)

const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	EntryViews        int64        `json:"entry_views"`
	MissingEntryViews int64        `json:"missing_entry_views"`
	AvgLatencyMicros  float64      `json:"avg_latency_us"`
	P50LatencyMicros  int64        `json:"p50_latency_us"`
	P95LatencyMicros  int64        `json:"p95_latency_us"`
	P99LatencyMicros  int64        `json:"p99_latency_us"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopEntries        []QueryCount `json:"top_entries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

// QueryCount pairs a key (a normalized query or an entry id) with a count.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running search statistics. It is fed either directly
// through Track or from the Kafka stream through HandleMessage.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	cacheHits         int64
	zeroResults       int64
	entryViews        int64
	missingViews      int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	entryCounts       map[string]int64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		entryCounts:       make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage decodes one Kafka message. Undecodable messages are logged
// and acknowledged so a bad producer cannot wedge the consumer.
func (a *Aggregator) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		a.Track(event)
		return nil
	}
}

// Track records event immediately.
func (a *Aggregator) Track(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case EventEntryView:
		a.entryViews++
		if event.Found {
			a.entryCounts[event.EntryID]++
		} else {
			a.missingViews++
		}
		return
	case EventSearch, EventZeroResult:
	default:
		a.logger.Debug("ignoring analytics event", "type", event.Type)
		return
	}

	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	}
	query := normalize(event.Query)
	a.queryCounts[query]++
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[query]++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMicros)
	} else {
		a.latencies[a.next] = event.LatencyMicros
		a.next = (a.next + 1) % latencyWindow
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.totalSearches - a.cacheHits,
		ZeroResultCount:   a.zeroResults,
		EntryViews:        a.entryViews,
		MissingEntryViews: a.missingViews,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMicros = float64(sum) / float64(len(sorted))
		stats.P50LatencyMicros = percentile(sorted, 50)
		stats.P95LatencyMicros = percentile(sorted, 95)
		stats.P99LatencyMicros = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	stats.TopEntries = topN(a.entryCounts, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then key, so equal counts list deterministically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// normalize folds case and whitespace so "Falls  risk" and "falls risk"
// count as one query.
func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// ContentGaps summarizes searches the corpus could not answer.
type ContentGaps struct {
	Searches       int64        `json:"searches"`
	ZeroResults    int64        `json:"zero_results"`
	ZeroResultRate float64      `json:"zero_result_rate"`
	Queries        []QueryCount `json:"queries"`
}

func (a *Aggregator) ContentGaps(n int) ContentGaps {
	a.mu.Lock()
	defer a.mu.Unlock()
	gaps := ContentGaps{
		Searches:    a.totalSearches,
		ZeroResults: a.zeroResults,
		Queries:     topN(a.zeroResultQueries, n),
	}
	if a.totalSearches > 0 {
		gaps.ZeroResultRate = float64(a.zeroResults) / float64(a.totalSearches)
	}
	return gaps
}

// EntryPopularity ranks entries by successful views. Views of unknown ids
// are counted but not listed.
type EntryPopularity struct {
	Views        int64        `json:"views"`
	MissingViews int64        `json:"missing_views"`
	Entries      []QueryCount `json:"entries"`
}

func (a *Aggregator) EntryPopularity(n int) EntryPopularity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return EntryPopularity{
		Views:        a.entryViews,
		MissingViews: a.missingViews,
		Entries:      topN(a.entryCounts, n),
	}
}
