package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeIndexMode(t *testing.T) {
	tok := New()
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"whitespace", "  \t\n ", []string{}},
		{"basic", "The Frailty and Sarcopenia", []string{"frailty", "sarcopenia"}},
		{"punctuation", "gait, balance; (falls)!", []string{"gait", "balance", "falls"}},
		{"hyphenated", "age-related muscle loss", []string{"age", "related", "muscle", "loss"}},
		{"short tokens dropped", "a b IL-6 x ray", []string{"il", "ray"}},
		{"unicode", "Síndrome de fragilidad", []string{"síndrome", "de", "fragilidad"}},
		{"digits kept", "type 2 vs type 12", []string{"type", "vs", "type", "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Tokenize(tt.input, ModeIndex))
		})
	}
}

func TestTokenizeQueryModeKeepsStopWordsInShortQueries(t *testing.T) {
	tok := New()

	assert.Equal(t, []string{"of", "the"}, tok.Tokenize("of the", ModeQuery))
	assert.Empty(t, tok.Tokenize("of the", ModeIndex))

	// three tokens or more behave like index mode
	assert.Equal(t, []string{"frailty", "elderly"}, tok.Tokenize("frailty of the elderly", ModeQuery))
}

func TestTokenizeSymmetry(t *testing.T) {
	tok := New(WithStemming())
	for _, text := range []string{"Falls Risk Assessment", "walking", "gait disorders"} {
		assert.Equal(t, tok.Tokenize(text, ModeIndex), tok.Tokenize(text, ModeQuery), text)
	}
}

func TestTokenizeStemming(t *testing.T) {
	plain := New()
	stemmed := New(WithStemming())

	assert.Equal(t, []string{"walking", "falls"}, plain.Tokenize("walking falls", ModeIndex))
	assert.Equal(t, []string{"walk", "fall"}, stemmed.Tokenize("walking falls", ModeIndex))
	// stop-words survive short queries unstemmed
	assert.Equal(t, []string{"the", "fall"}, stemmed.Tokenize("the falls", ModeQuery))
}

func TestTokenizeAllowList(t *testing.T) {
	tok := New(WithAllowList("D"))
	assert.Equal(t, []string{"vitamin", "d"}, tok.Tokenize("Vitamin D", ModeIndex))
}
