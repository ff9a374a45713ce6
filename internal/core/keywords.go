package core

import (
	"fmt"
	"strings"
)

const (
	// keywordWeight scales the raw match ratio into a confidence
	keywordWeight = 0.85
	// keywordCeiling caps keyword confidence below certainty
	keywordCeiling = 0.95
)

// KeywordScorer classifies by counting configured category keywords in the
// subject and body. It has no external dependencies and never blocks.
type KeywordScorer struct {
	categories *CategorySet
}

// NewKeywordScorer creates a scorer over the configured categories
func NewKeywordScorer(categories *CategorySet) *KeywordScorer {
	return &KeywordScorer{categories: categories}
}

// Score returns the best-matching category for the message content, or
// ok=false when no keyword of any category occurs. Confidence is
// min(0.95, matches/len(keywords)*0.85).
func (k *KeywordScorer) Score(subject, body string) (category string, confidence float64, explanation string, ok bool) {
	content := strings.ToLower(subject + " " + body)

	for _, cat := range k.categories.All() {
		if len(cat.Keywords) == 0 {
			continue
		}
		matches := 0
		for _, kw := range cat.Keywords {
			if strings.Contains(content, strings.ToLower(kw)) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) / float64(len(cat.Keywords)) * keywordWeight
		if score > keywordCeiling {
			score = keywordCeiling
		}
		if score > confidence {
			category = cat.Name
			confidence = score
			explanation = fmt.Sprintf("%d keyword match(es) for %s", matches, cat.Name)
			ok = true
		}
	}
	return category, confidence, explanation, ok
}
