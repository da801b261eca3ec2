package usecase

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Compiled regex patterns for query preprocessing
var (
	// Anything that is not a letter, digit or whitespace
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// leadingFillerPhrases are conversational openers stripped from the front of a query.
// Stored in normalized form (see normalizeText).
var leadingFillerPhrases = normalizeAll([]string{
	"do you have any",
	"do you have",
	"do you sell",
	"do you carry",
	"have you got",
	"i am looking for",
	"i'm looking for",
	"im looking for",
	"looking for",
	"i would like to buy",
	"i would like",
	"i'd like",
	"i want to buy",
	"i want",
	"i need",
	"can i get",
	"can i have",
	"can you show me",
	"show me",
	"find me",
	"add to cart",
	"add",
	"buy",
})

// queryNoiseWords are dropped wherever they appear in a query
var queryNoiseWords = map[string]bool{
	"please": true,
	"pls":    true,
	"thanks": true,
	"thx":    true,
	"hi":     true,
	"hello":  true,
	"hey":    true,
}

// leadingArticles are dropped once filler phrases are gone
var leadingArticles = map[string]bool{
	"a":    true,
	"an":   true,
	"the":  true,
	"some": true,
	"your": true,
	"one":  true,
}

// QueryPreprocessor cleans shopper text before deterministic catalog matching
type QueryPreprocessor struct {
	logger *zap.Logger
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(logger *zap.Logger) *QueryPreprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryPreprocessor{logger: logger}
}

// PreprocessQuery normalizes a shopper query and strips conversational filler,
// e.g. "Do you have the Blue Hoodie, please?" becomes "blue hoodie".
func (p *QueryPreprocessor) PreprocessQuery(query string) string {
	if query == "" {
		return ""
	}

	cleaned := normalizeText(query)
	cleaned = p.removeNoiseWords(cleaned)
	cleaned = stripLeadingFiller(cleaned)
	cleaned = stripLeadingArticles(cleaned)

	p.logger.Debug("preprocessed query",
		zap.String("input", query),
		zap.String("output", cleaned))

	return cleaned
}

// removeNoiseWords removes greetings and politeness markers from the query
func (p *QueryPreprocessor) removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, word := range words {
		if !queryNoiseWords[word] {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}

// stripLeadingFiller repeatedly removes known opener phrases from the start of s.
// Phrases only match on word boundaries.
func stripLeadingFiller(s string) string {
	for {
		stripped := false
		for _, phrase := range leadingFillerPhrases {
			if s == phrase {
				return ""
			}
			if strings.HasPrefix(s, phrase+" ") {
				s = strings.TrimSpace(s[len(phrase):])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

func stripLeadingArticles(s string) string {
	words := strings.Fields(s)
	for len(words) > 1 && leadingArticles[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// normalizeText lowercases s, turns punctuation into spaces and collapses whitespace
func normalizeText(s string) string {
	cleaned := punctuationPattern.ReplaceAllString(strings.ToLower(s), " ")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func normalizeAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		out = append(out, normalizeText(phrase))
	}
	return out
}
