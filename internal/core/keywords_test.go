package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordScorer(t *testing.T) {
	scorer := NewKeywordScorer(testCategories(t))

	t.Run("no keyword anywhere", func(t *testing.T) {
		_, _, _, ok := scorer.Score("hello", "just catching up")
		assert.False(t, ok)
	})

	t.Run("full match on single-keyword category", func(t *testing.T) {
		category, confidence, explanation, ok := scorer.Score("Unsubscribe now", "")
		require.True(t, ok)
		assert.Equal(t, "SPAM", category)
		assert.InDelta(t, 0.85, confidence, 1e-9)
		assert.Contains(t, explanation, "SPAM")
	})

	t.Run("partial match scores proportionally", func(t *testing.T) {
		// 1 of 2 BANQUE keywords: 0.5 * 0.85
		category, confidence, _, ok := scorer.Score("votre facture", "")
		require.True(t, ok)
		assert.Equal(t, "BANQUE", category)
		assert.InDelta(t, 0.425, confidence, 1e-9)
	})

	t.Run("highest score wins across categories", func(t *testing.T) {
		// Both BANQUE keywords (0.85) beat one NEWSLETTER keyword (0.425)
		category, confidence, _, ok := scorer.Score("virement et facture", "votre digest")
		require.True(t, ok)
		assert.Equal(t, "BANQUE", category)
		assert.InDelta(t, 0.85, confidence, 1e-9)
	})

	t.Run("matching is case-insensitive over subject and body", func(t *testing.T) {
		category, _, _, ok := scorer.Score("", "please UNSUBSCRIBE below")
		require.True(t, ok)
		assert.Equal(t, "SPAM", category)
	})
}
