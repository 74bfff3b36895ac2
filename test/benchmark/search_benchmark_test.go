package benchmark

import (
	"fmt"
	"testing"

	"github.com/dannyJ848/SOMA-sub037/internal/searcher/ranker"
	"github.com/dannyJ848/SOMA-sub037/pkg/contentindex"
)

func mustIndex(b *testing.B, n int) *contentindex.Index {
	b.Helper()
	ix, err := contentindex.New(syntheticCorpus(n), contentindex.Options{})
	if err != nil {
		b.Fatal(err)
	}
	return ix
}

func BenchmarkSearch(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"single_term", "frailty"},
		{"exact_name", "frailty sarcopenia"},
		{"short_with_stopword", "falls in gait"},
		{"long", "older adults memory medication protein collagen neuron muscle"},
		{"no_match", "xyznonexistentterm"},
	}
	for _, n := range []int{1000, 5000} {
		ix := mustIndex(b, n)
		for _, q := range queries {
			b.Run(fmt.Sprintf("entries_%d/%s", n, q.name), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_ = ix.Search(q.query, contentindex.DefaultLimit)
				}
			})
		}
	}
}

func BenchmarkSearchUnlimited(b *testing.B) {
	ix := mustIndex(b, 5000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ix.Search("frailty falls", 0)
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	ix := mustIndex(b, 5000)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = ix.Search(word(i)+" "+word(i+1), 10)
			i++
		}
	})
}

func BenchmarkRankTopK(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		scores := make(ranker.Scores, n)
		ids := make([]string, n)
		for i := 0; i < n; i++ {
			scores[uint32(i)] = float64((i*7919)%97) + 0.5
			ids[i] = fmt.Sprintf("bench-%05d", i)
		}
		entryID := func(ord uint32) string { return ids[ord] }
		for _, limit := range []int{10, 0} {
			b.Run(fmt.Sprintf("scores_%d/limit_%d", n, limit), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_ = ranker.Rank(scores, entryID, limit)
				}
			})
		}
	}
}
