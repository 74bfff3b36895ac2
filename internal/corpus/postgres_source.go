package corpus

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	apperrors "github.com/dannyJ848/SOMA-sub037/pkg/errors"
	"github.com/dannyJ848/SOMA-sub037/pkg/resilience"
)

// Queryer is the subset of *sql.DB the Postgres source needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresSource reads entries stored as JSON documents, one row per entry:
//
//	CREATE TABLE content_entries (
//	    position INTEGER PRIMARY KEY,
//	    doc      JSONB   NOT NULL
//	);
//
// Rows are returned in position order.
type PostgresSource struct {
	db    Queryer
	table string
	retry resilience.RetryConfig
}

func NewPostgresSource(db Queryer, table string) *PostgresSource {
	return &PostgresSource{
		db:    db,
		table: table,
		retry: resilience.RetryConfig{
			MaxAttempts: 5,
			// a malformed document will not fix itself
			Retryable: func(err error) bool {
				return !errors.Is(err, apperrors.ErrInvalidEntry)
			},
		},
	}
}

func (s *PostgresSource) Name() string {
	return "postgres:" + s.table
}

func (s *PostgresSource) Load(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := resilience.Retry(ctx, "load corpus", s.retry, func() error {
		loaded, err := s.load(ctx)
		if err != nil {
			return err
		}
		entries = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *PostgresSource) load(ctx context.Context) ([]Entry, error) {
	query := fmt.Sprintf("SELECT position, doc FROM %s ORDER BY position", pq.QuoteIdentifier(s.table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			position int
			doc      []byte
		)
		if err := rows.Scan(&position, &doc); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		entry, err := decodeDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("row at position %d: %w", position, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return entries, nil
}

func decodeDocument(doc []byte) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal(doc, &entry); err != nil {
		return Entry{}, fmt.Errorf("%w: decoding entry document: %v", apperrors.ErrInvalidEntry, err)
	}
	var raw struct {
		Levels json.RawMessage `json:"levels"`
	}
	if err := json.Unmarshal(doc, &raw); err != nil {
		return Entry{}, fmt.Errorf("%w: decoding entry document: %v", apperrors.ErrInvalidEntry, err)
	}
	if err := checkLevelTiers(raw.Levels); err != nil {
		return Entry{}, fmt.Errorf("%w: entry %q: %v", apperrors.ErrInvalidEntry, entry.ID, err)
	}
	return entry, nil
}

// checkLevelTiers rejects a levels object that names the same tier twice.
// Unmarshaling into a map silently keeps the last one.
func checkLevelTiers(levels json.RawMessage) error {
	if len(levels) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(levels))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}
	seen := make(map[int]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		tier, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("level key %q is not an integer", key)
		}
		if seen[tier] {
			return fmt.Errorf("level %d defined more than once", tier)
		}
		seen[tier] = true
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
	return nil
}

// Execer is the subset of *sql.Tx used to write the corpus table.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteTable replaces the contents of table with entries, creating the table
// if needed. It is meant to run inside one transaction so readers never see
// a partial corpus.
func WriteTable(ctx context.Context, tx Execer, table string, entries []Entry) error {
	quoted := pq.QuoteIdentifier(table)
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (position INTEGER PRIMARY KEY, doc JSONB NOT NULL)", quoted),
		fmt.Sprintf("DELETE FROM %s", quoted),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("preparing %s: %w", table, err)
		}
	}
	insert := fmt.Sprintf("INSERT INTO %s (position, doc) VALUES ($1, $2)", quoted)
	for i := range entries {
		doc, err := json.Marshal(&entries[i])
		if err != nil {
			return fmt.Errorf("encoding entry %q: %w", entries[i].ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, i, doc); err != nil {
			return fmt.Errorf("inserting entry %q: %w", entries[i].ID, err)
		}
	}
	return nil
}
