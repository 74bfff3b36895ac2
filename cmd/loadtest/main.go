package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Mixed workload against the content API: mostly searches, with entry
// lookups and category listings in between.
var queries = []string{
	"frailty",
	"falls risk",
	"Frailty and Sarcopenia",
	"delirium",
	"dementia memory",
	"hip fracture",
	"gait speed",
	"deprescribing",
	"polypharmacy",
	"sarcopenia protein",
	"cellular senescence",
	"skeletal muscle",
	"squamous epithelium",
	"neuron axon",
	"collagen",
}

var entryIDs = []string{
	"concept-frailty-sarcopenia",
	"concept-falls-risk",
	"concept-delirium",
	"histo-skeletal-muscle",
	"concept-unknown",
}

var categories = []string{
	"falls-mobility",
	"cognitive-health",
	"nervous-tissue",
}

type target struct {
	kind string
	path string
}

func targets() []target {
	var out []target
	for i, q := range queries {
		out = append(out, target{kind: "search", path: "/api/v1/search?limit=10&q=" + url.QueryEscape(q)})
		if i%3 == 0 {
			out = append(out, target{kind: "entry", path: "/api/v1/entries/" + entryIDs[(i/3)%len(entryIDs)]})
		}
		if i%5 == 0 {
			out = append(out, target{kind: "category", path: "/api/v1/categories/" + categories[(i/5)%len(categories)]})
		}
	}
	return out
}

type recorder struct {
	mu        sync.Mutex
	latencies map[string][]time.Duration
	codes     map[int]int64
	failures  atomic.Int64
}

func newRecorder() *recorder {
	return &recorder{
		latencies: make(map[string][]time.Duration),
		codes:     make(map[int]int64),
	}
}

func (r *recorder) record(kind string, d time.Duration, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies[kind] = append(r.latencies[kind], d)
	r.codes[code]++
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the content search service")
	workers := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "global request rate cap; 0 means unlimited")
	flag.Parse()

	plan := targets()
	fmt.Println("=== Content Search Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *workers)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Requests:    %d distinct\n\n", len(plan))

	rec := run(*baseURL, *workers, *duration, *rps, plan)
	if !report(rec, *duration) {
		os.Exit(1)
	}
}

func run(baseURL string, workers int, duration time.Duration, rps float64, plan []target) *recorder {
	rec := newRecorder()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        workers * 2,
			MaxIdleConnsPerHost: workers * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps/10)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; ; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
				t := plan[i%len(plan)]
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+t.path, nil)
				if err != nil {
					return fmt.Errorf("building request %s: %w", t.path, err)
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					rec.failures.Add(1)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				rec.record(t.kind, elapsed, resp.StatusCode)
			}
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
	}
	return rec
}

func report(rec *recorder, duration time.Duration) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	var total int64
	for _, n := range rec.codes {
		total += n
	}
	failures := rec.failures.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Completed:       %d\n", total)
	fmt.Printf("Transport errs:  %d\n", failures)
	if total == 0 {
		fmt.Println("\nWARNING: no requests completed. Is the service running?")
		return false
	}
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	kinds := make([]string, 0, len(rec.latencies))
	for kind := range rec.latencies {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		lat := slices.Clone(rec.latencies[kind])
		slices.Sort(lat)
		fmt.Printf("\n=== %s (%d) ===\n", kind, len(lat))
		fmt.Printf("P50: %s  P90: %s  P99: %s  Max: %s\n",
			percentile(lat, 50), percentile(lat, 90), percentile(lat, 99), lat[len(lat)-1])
	}

	fmt.Println("\n=== Status Codes ===")
	codes := make([]int, 0, len(rec.codes))
	for code := range rec.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, rec.codes[code])
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
