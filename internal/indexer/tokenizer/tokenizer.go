// Package tokenizer provides text tokenisation for the content index.
// It lower-cases input, splits on non-alphanumeric boundaries, drops very
// short tokens and removes stop-words. The same Tokenizer must be used for
// indexing and querying so that both sides produce comparable terms.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball"
)

// Mode selects how stop-words are treated.
type Mode int

const (
	// ModeIndex always removes stop-words.
	ModeIndex Mode = iota
	// ModeQuery keeps stop-words when the query has fewer than
	// shortQueryTokens tokens.
	ModeQuery
)

const (
	minTokenLen      = 2
	shortQueryTokens = 3
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
	"this": {}, "but": {}, "they": {}, "their": {}, "which": {},
}

// Tokenizer is immutable after construction and safe for concurrent use.
type Tokenizer struct {
	stemming bool
	allow    map[string]struct{}
}

type Option func(*Tokenizer)

// WithStemming reduces tokens to their English snowball stem.
func WithStemming() Option {
	return func(t *Tokenizer) {
		t.stemming = true
	}
}

// WithAllowList keeps the given words even when they are shorter than the
// minimum token length.
func WithAllowList(words ...string) Option {
	return func(t *Tokenizer) {
		for _, w := range words {
			t.allow[strings.ToLower(w)] = struct{}{}
		}
	}
}

func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{allow: make(map[string]struct{})}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsStopWord reports whether word is on the fixed stop-word list.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// Tokenize breaks text into normalised terms. It never fails; empty or
// whitespace-only input yields an empty, non-nil slice.
func (t *Tokenizer) Tokenize(text string, mode Mode) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := words[:0]
	for _, word := range words {
		if utf8.RuneCountInString(word) < minTokenLen {
			if _, ok := t.allow[word]; !ok {
				continue
			}
		}
		kept = append(kept, word)
	}

	dropStops := mode == ModeIndex || len(kept) >= shortQueryTokens
	tokens := make([]string, 0, len(kept))
	for _, word := range kept {
		if dropStops && IsStopWord(word) {
			continue
		}
		tokens = append(tokens, t.stem(word))
	}
	return tokens
}

func (t *Tokenizer) stem(word string) string {
	if !t.stemming || IsStopWord(word) {
		return word
	}
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil || stemmed == "" {
		return word
	}
	return stemmed
}
