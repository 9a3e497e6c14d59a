package resolution

import (
	"testing"

	"github.com/hbollon/go-edlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedRatio(t *testing.T) {
	w := WeightedRatio{}
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "Acme", "Acme", 100},
		{"case and punctuation ignored", "ACME-X", "acme x", 100},
		{"one substitution", "abcd", "abce", 75},
		{"token order ignored", "ethyl alcohol", "alcohol ethyl", 95},
		{"partial containment", "acme", "acme industrial solvent", 90},
		{"disjoint", "abc", "xyz", 0},
		{"empty query", "", "acme", 0},
		{"punctuation only", "---", "---", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Score(tt.a, tt.b))
		})
	}
}

func TestWeightedRatio_Symmetric(t *testing.T) {
	w := WeightedRatio{}
	pairs := [][2]string{
		{"Formaldehyde", "Formalin"},
		{"Etanol", "Ethanol"},
		{"wood alcohol", "Methanol"},
	}
	for _, p := range pairs {
		assert.Equal(t, w.Score(p[0], p[1]), w.Score(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100, partialRatio("methanol", "wood methanol"))
	assert.Equal(t, 0, partialRatio("", "abc"))
	assert.Equal(t, 75, partialRatio("abce", "xxabcdxx"))
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 100, tokenSetRatio("ethyl alcohol", "alcohol ethyl", ratio))
	assert.Equal(t, 0, tokenSetRatio("", "alcohol", ratio))
}

func TestEdlibSimilarity(t *testing.T) {
	lev := EdlibSimilarity{Algorithm: edlib.Levenshtein}
	assert.Equal(t, 100, lev.Score("Ethanol", "ethanol"))
	assert.Equal(t, 75, lev.Score("abcd", "abce"))
	assert.Equal(t, 0, lev.Score("", "abc"))

	jw := EdlibSimilarity{Algorithm: edlib.JaroWinkler}
	assert.Equal(t, 100, jw.Score("Spirit", "spirit"))
}

func TestNewSimilarity(t *testing.T) {
	sim, err := NewSimilarity("")
	require.NoError(t, err)
	assert.IsType(t, WeightedRatio{}, sim)

	sim, err = NewSimilarity(" WRatio ")
	require.NoError(t, err)
	assert.IsType(t, WeightedRatio{}, sim)

	sim, err = NewSimilarity("jaro-winkler")
	require.NoError(t, err)
	assert.Equal(t, EdlibSimilarity{Algorithm: edlib.JaroWinkler}, sim)

	_, err = NewSimilarity("soundex")
	assert.Error(t, err)
}

func TestSimilarityAlgorithms(t *testing.T) {
	names := SimilarityAlgorithms()
	assert.Equal(t, AlgorithmWRatio, names[0])
	assert.Len(t, names, 10)
	for _, n := range names {
		_, err := NewSimilarity(n)
		assert.NoError(t, err, n)
	}
}
