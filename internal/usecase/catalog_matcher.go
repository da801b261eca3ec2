package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/chatcart/backend/internal/domain"
	"go.uber.org/zap"
)

// matchStrength ranks how strongly a query identifies a product title.
// Only candidates in the strongest non-empty tier compete with each other.
type matchStrength int

const (
	strengthNone matchStrength = iota
	strengthContained
	strengthExact
)

const (
	defaultMinCoverage         = 0.5
	defaultMinSignificantRunes = 4
)

// negationWords turn a named title into something the shopper does not want.
// Apostrophes are already split out by normalizeText ("don't" becomes "don t").
var negationWords = map[string]bool{
	"no":      true,
	"not":     true,
	"never":   true,
	"without": true,
	"dont":    true,
	"don":     true,
	"doesn":   true,
	"isn":     true,
	"aren":    true,
	"nor":     true,
}

// MatcherConfig holds configuration for the catalog matcher
type MatcherConfig struct {
	// MinCoverage is the minimum share one side must cover of the other when
	// one is contained in the other: title runes covered by a partial query, or
	// query words covered by a title named inside a longer sentence.
	MinCoverage float64
	// MinSignificantRunes is the minimum length of the contained side.
	MinSignificantRunes int
}

// CatalogMatcher finds a single unambiguous product for a shopper query without a model call
type CatalogMatcher struct {
	preprocessor        *QueryPreprocessor
	minCoverage         float64
	minSignificantRunes int
	logger              *zap.Logger
}

// NewCatalogMatcher creates a new catalog matcher with the given configuration
func NewCatalogMatcher(config MatcherConfig, preprocessor *QueryPreprocessor, logger *zap.Logger) *CatalogMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if preprocessor == nil {
		preprocessor = NewQueryPreprocessor(logger)
	}

	coverage := config.MinCoverage
	if coverage <= 0 || coverage > 1 {
		coverage = defaultMinCoverage
	}

	minRunes := config.MinSignificantRunes
	if minRunes <= 0 {
		minRunes = defaultMinSignificantRunes
	}

	return &CatalogMatcher{
		preprocessor:        preprocessor,
		minCoverage:         coverage,
		minSignificantRunes: minRunes,
		logger:              logger,
	}
}

// FindExact returns the one active product the query unambiguously names.
// Ties in the strongest tier return no match rather than a guess.
func (m *CatalogMatcher) FindExact(query string, products []domain.Product) (*domain.Product, bool) {
	normalizedQuery := m.preprocessor.PreprocessQuery(query)
	if normalizedQuery == "" {
		return nil, false
	}

	best := strengthNone
	var candidates []int

	for i, product := range products {
		if !product.IsActive() {
			continue
		}

		strength := m.strength(normalizedQuery, normalizeText(product.Title))
		switch {
		case strength == strengthNone:
			continue
		case strength > best:
			best = strength
			candidates = []int{i}
		case strength == best:
			candidates = append(candidates, i)
		}
	}

	if len(candidates) != 1 {
		if len(candidates) > 1 {
			m.logger.Debug("exact match ambiguous",
				zap.String("query", normalizedQuery),
				zap.Int("candidates", len(candidates)))
		}
		return nil, false
	}

	match := products[candidates[0]]
	m.logger.Debug("exact match found",
		zap.String("query", normalizedQuery),
		zap.String("productId", match.ID))
	return &match, true
}

// strength classifies the relation between a normalized query and title
func (m *CatalogMatcher) strength(query, title string) matchStrength {
	if title == "" {
		return strengthNone
	}
	if query == title {
		return strengthExact
	}

	queryRunes := utf8.RuneCountInString(query)
	titleRunes := utf8.RuneCountInString(title)

	// Shopper named the product inside a short sentence with no negation
	if titleRunes >= m.minSignificantRunes && containsPhrase(query, title) {
		if m.namesOnlyTitle(query, title) {
			return strengthContained
		}
		return strengthNone
	}

	// Shopper typed a significant part of the title
	if queryRunes >= m.minSignificantRunes && containsPhrase(title, query) {
		if float64(queryRunes)/float64(titleRunes) >= m.minCoverage {
			return strengthContained
		}
	}

	return strengthNone
}

// namesOnlyTitle reports whether the title dominates the query and none of the
// surrounding words negate it
func (m *CatalogMatcher) namesOnlyTitle(query, title string) bool {
	queryWords := strings.Fields(query)
	titleWords := len(strings.Fields(title))
	if float64(titleWords)/float64(len(queryWords)) < m.minCoverage {
		return false
	}

	extra := strings.Fields(strings.Replace(" "+query+" ", " "+title+" ", " ", 1))
	for _, word := range extra {
		if negationWords[word] {
			return false
		}
	}
	return true
}

// containsPhrase reports whether needle appears in haystack on word boundaries.
// Both inputs must already be normalized (single spaces, no punctuation).
func containsPhrase(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
