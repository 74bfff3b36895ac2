package benchmark

import (
	"strings"
	"testing"

	"github.com/dannyJ848/SOMA-sub037/internal/indexer/tokenizer"
)

var sampleTexts = map[string]string{
	"name": "Frailty and Sarcopenia",
	"level": `Frailty shows up as unintentional weight loss, exhaustion, low activity,
        slow walking and a weak grip. Sarcopenia, the loss of muscle mass with age,
        is a major contributor.`,
	"corpus": strings.Repeat(`Chronic low-grade inflammation with elevated IL-6 and CRP,
        neuroendocrine dysregulation and sarcopenia interact to reduce homeostatic
        reserve. The Rockwood index counts accumulated deficits. `, 40),
}

func BenchmarkTokenize(b *testing.B) {
	for _, tc := range []struct {
		name string
		tok  *tokenizer.Tokenizer
	}{
		{"plain", tokenizer.New()},
		{"stemmed", tokenizer.New(tokenizer.WithStemming())},
	} {
		for name, text := range sampleTexts {
			b.Run(tc.name+"/"+name, func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(text)))
				for i := 0; i < b.N; i++ {
					_ = tc.tok.Tokenize(text, tokenizer.ModeIndex)
				}
			})
		}
	}
}

func BenchmarkTokenizeQuery(b *testing.B) {
	tok := tokenizer.New()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = tok.Tokenize("falls in the elderly", tokenizer.ModeQuery)
	}
}
