package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("john smith", "john smith"))
	assert.InDelta(t, 0.6667, Ratio("abc", "abd"), 0.001)
	assert.Equal(t, 0.0, Ratio("", "abc"))
	assert.Equal(t, 1.0, Ratio("", ""))
}

func TestTokenSortRatioIgnoresWordOrder(t *testing.T) {
	assert.Equal(t, 1.0, TokenSortRatio("john smith", "smith john"))
	assert.True(t, TokenSortRatio("john smith", "smith jon") > 0.85)
}

func TestTokenSetRatioIgnoresExtraTokens(t *testing.T) {
	// Middle name on one side only
	assert.Equal(t, 1.0, TokenSetRatio("john smith", "john a smith"))
	assert.Equal(t, 1.0, TokenSetRatio("john smith", "smith john smith"))
}

func TestPartialRatioHandlesSubstrings(t *testing.T) {
	assert.Equal(t, 1.0, PartialRatio("ann lee", "ann lee consulting"))
	assert.InDelta(t, 0.6667, PartialRatio("bob", "robert"), 0.001)
}

func TestCompareNames(t *testing.T) {
	t.Run("identical after normalization", func(t *testing.T) {
		score := CompareNames("José García", "Jose Garcia")
		assert.Equal(t, 1.0, score.Best)
		assert.Equal(t, MethodFuzzyNameMatch, score.Method)
	})

	t.Run("reversed with comma", func(t *testing.T) {
		score := CompareNames("Smith, John", "John Smith")
		assert.Equal(t, 1.0, score.Best)
		assert.Equal(t, 1.0, score.TokenSort)
	})

	t.Run("middle initial", func(t *testing.T) {
		score := CompareNames("John Smith", "John A. Smith")
		assert.Equal(t, 1.0, score.TokenSet)
		assert.Equal(t, 1.0, score.Best)
	})

	t.Run("missing data", func(t *testing.T) {
		score := CompareNames("", "John Smith")
		assert.Equal(t, 0.0, score.Best)
		assert.Equal(t, MethodMissingData, score.Method)
	})

	t.Run("best is max of the four", func(t *testing.T) {
		score := CompareNames("Bob Smith", "Robert Smith")
		for _, s := range []float64{score.Plain, score.TokenSort, score.TokenSet, score.Partial} {
			assert.LessOrEqual(t, s, score.Best)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	})
}

func TestSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{"a", "completely different string"},
		{"zara khan", "totally unrelated name"},
		{"x", "x"},
		{"", ""},
		{"anne-marie", "annemarie"},
	}

	for _, p := range pairs {
		for _, r := range []float64{
			Ratio(p[0], p[1]),
			TokenSortRatio(p[0], p[1]),
			TokenSetRatio(p[0], p[1]),
			PartialRatio(p[0], p[1]),
		} {
			assert.GreaterOrEqual(t, r, 0.0, "pair %v", p)
			assert.LessOrEqual(t, r, 1.0, "pair %v", p)
		}
	}
}
