package parser

import (
	"strings"

	"github.com/dannyJ848/SOMA-sub037/internal/indexer/tokenizer"
)

// QueryPlan is a tokenized free-text query. Terms match as an OR: an entry
// containing any one of them is a candidate.
type QueryPlan struct {
	RawQuery string
	// Phrase is the trimmed, lower-cased query used for the name bonus.
	Phrase string
	// Terms are unique query-mode tokens in first-seen order.
	Terms []string
	// Category optionally restricts candidates to one category.
	Category string
}

func Parse(query string, tok *tokenizer.Tokenizer) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Phrase:   strings.ToLower(strings.TrimSpace(query)),
		Terms:    make([]string, 0),
	}
	if plan.Phrase == "" {
		return plan
	}
	seen := make(map[string]struct{})
	for _, term := range tok.Tokenize(query, tokenizer.ModeQuery) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}

// WithCategory returns plan restricted to category; an empty category
// leaves it unrestricted.
func (p *QueryPlan) WithCategory(category string) *QueryPlan {
	p.Category = strings.TrimSpace(category)
	return p
}

// Empty reports whether the query produced no searchable terms.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}
