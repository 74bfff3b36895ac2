// Command indexer builds the content index offline from a corpus source and
// reports what a serving process would load: entry and term counts, the
// per-category breakdown and dangling cross references. With -seed it
// copies the embedded corpus into the Postgres corpus table.
//
// Usage:
//
//	go run ./cmd/indexer [-config path] [-dir corpus/] [-seed] [-dump-terms 20]
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
	"github.com/dannyJ848/SOMA-sub037/internal/indexer/index"
	"github.com/dannyJ848/SOMA-sub037/pkg/config"
	"github.com/dannyJ848/SOMA-sub037/pkg/contentindex"
	"github.com/dannyJ848/SOMA-sub037/pkg/logger"
	"github.com/dannyJ848/SOMA-sub037/pkg/postgres"
)

type report struct {
	Source       string         `json:"source"`
	Entries      int            `json:"entries"`
	Terms        int            `json:"terms"`
	Postings     int            `json:"postings"`
	Tokens       int            `json:"tokens"`
	DanglingRefs int            `json:"dangling_refs"`
	Categories   map[string]int `json:"categories"`
	BuildMillis  float64        `json:"build_ms"`
	TopTerms     []termCount    `json:"top_terms,omitempty"`
}

type termCount struct {
	Term    string `json:"term"`
	Entries int    `json:"entries"`
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	dir := flag.String("dir", "", "read YAML corpus files from this directory instead of the configured source")
	seed := flag.Bool("seed", false, "write the embedded corpus to the postgres corpus table and exit")
	dumpTerms := flag.Int("dump-terms", 0, "include the N terms with the most entries in the report")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *seed {
		err = seedPostgres(ctx, cfg)
	} else {
		err = build(ctx, cfg, *dir, *dumpTerms)
	}
	if err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

func build(ctx context.Context, cfg *config.Config, dir string, dumpTerms int) error {
	var src contentindex.CorpusSource
	switch {
	case dir != "":
		src = corpus.Dir(dir)
	case cfg.Corpus.Source == config.SourceDir:
		src = corpus.Dir(cfg.Corpus.Dir)
	case cfg.Corpus.Source == config.SourcePostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer client.Close()
		src = corpus.NewPostgresSource(client.DB, cfg.Corpus.Table)
	default:
		src = corpus.Embedded()
	}

	ix, err := contentindex.Load(ctx, src, contentindex.Options{
		Stemming:         cfg.Search.Stemming,
		ExactPhraseBonus: cfg.Search.ExactPhraseBonus,
	})
	if err != nil {
		return fmt.Errorf("building index from %s: %w", src.Name(), err)
	}
	stats := ix.Stats()
	out := report{
		Source:       ix.Source(),
		Entries:      stats.Entries,
		Terms:        stats.Terms,
		Postings:     stats.Postings,
		Tokens:       stats.Tokens,
		DanglingRefs: stats.DanglingRefs,
		Categories:   stats.CategoryEntries,
		BuildMillis:  float64(ix.BuildDuration().Microseconds()) / 1000,
	}
	if dumpTerms > 0 {
		out.TopTerms = topTerms(ix.Executor().Index().Snapshot(), dumpTerms)
	}
	if stats.DanglingRefs > 0 {
		slog.Warn("corpus has cross references to missing entries", "count", stats.DanglingRefs)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// topTerms ranks terms by the number of distinct entries they occur in.
func topTerms(snapshot []index.TermEntry, n int) []termCount {
	counts := make([]termCount, 0, len(snapshot))
	for _, te := range snapshot {
		seen := make(map[uint32]struct{}, len(te.Postings))
		for _, p := range te.Postings {
			seen[p.Ordinal] = struct{}{}
		}
		counts = append(counts, termCount{Term: te.Term, Entries: len(seen)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Entries != counts[j].Entries {
			return counts[i].Entries > counts[j].Entries
		}
		return counts[i].Term < counts[j].Term
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func seedPostgres(ctx context.Context, cfg *config.Config) error {
	entries, err := corpus.Embedded().Load(ctx)
	if err != nil {
		return err
	}
	client, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer client.Close()
	err = client.InTx(ctx, func(tx *sql.Tx) error {
		return corpus.WriteTable(ctx, tx, cfg.Corpus.Table, entries)
	})
	if err != nil {
		return err
	}
	slog.Info("corpus seeded", "table", cfg.Corpus.Table, "entries", len(entries))
	return nil
}
