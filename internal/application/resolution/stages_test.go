package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/testutil"
)

func ids(cands []Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Reference.ReferenceID)
	}
	return out
}

// fixedScores scores only the listed texts; everything else gets 0.
func fixedScores(scores map[string]int) Similarity {
	return SimilarityFunc(func(_, candidate string) int {
		return scores[candidate]
	})
}

func TestExactStage_CodeBeforeName(t *testing.T) {
	store := testutil.SampleStore(t)

	cands, ok := ExactStage{}.Run(store, "acme")
	require.True(t, ok)
	assert.Equal(t, []string{"R5", "R1"}, ids(cands))
	assert.Equal(t, MatchExactCode, cands[0].MatchType)
	assert.Equal(t, MatchExactName, cands[1].MatchType)
	for _, c := range cands {
		assert.Equal(t, ExactScore, c.Score)
		assert.Equal(t, "acme", c.MatchedText)
	}
}

func TestExactStage_ReferenceCapturedOnce(t *testing.T) {
	store := testutil.MustStore(t, substance.Tables{
		References: []substance.Reference{{ReferenceID: "1", SubstanceCode: "Dup", Name: "dup"}},
		Synonyms:   []substance.Synonym{{SubstanceCode: "Dup", LocalName: "DUP"}},
	})

	cands, ok := ExactStage{}.Run(store, "dup")
	require.True(t, ok)
	require.Len(t, cands, 1)
	assert.Equal(t, MatchExactCode, cands[0].MatchType)
}

func TestExactStage_SynonymPassUsesFirstRowsOnly(t *testing.T) {
	tables := substance.Tables{
		References: []substance.Reference{
			{ReferenceID: "1", SubstanceCode: "C1", Name: "One"},
			{ReferenceID: "2", SubstanceCode: "C2", Name: "Two"},
			{ReferenceID: "3", SubstanceCode: "C3", Name: "Three"},
			{ReferenceID: "4", SubstanceCode: "C4", Name: "Four"},
		},
		Synonyms: []substance.Synonym{
			{SubstanceCode: "C1", LocalName: "Common"},
			{SubstanceCode: "C2", LocalName: "Common"},
			{SubstanceCode: "C3", LocalName: "common"},
			{SubstanceCode: "C4", LocalName: "Common"},
		},
	}
	cands, ok := ExactStage{}.Run(testutil.MustStore(t, tables), "COMMON")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2", "3"}, ids(cands))
	assert.Equal(t, "common", cands[2].MatchedText)

	// An unjoined row still occupies one of the three slots.
	tables.Synonyms = append([]substance.Synonym{{SubstanceCode: "NONE", LocalName: "Common"}}, tables.Synonyms...)
	cands, ok = ExactStage{}.Run(testutil.MustStore(t, tables), "common")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, ids(cands))
	for _, c := range cands {
		assert.Equal(t, MatchExactSynonym, c.MatchType)
	}

	cands, _ = ExactStage{SynonymPassLimit: 5}.Run(testutil.MustStore(t, tables), "common")
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(cands))
}

func TestExactStage_NoMatch(t *testing.T) {
	store := testutil.SampleStore(t)

	cands, ok := ExactStage{}.Run(store, "orphan name")
	assert.False(t, ok, "unjoined synonyms never match")
	assert.Empty(t, cands)

	_, ok = ExactStage{}.Run(store, "  ")
	assert.False(t, ok)
}

func TestFuzzyStage_OrdersByScoreThenType(t *testing.T) {
	store := testutil.SampleStore(t)
	stage := FuzzyStage{
		Similarity: fixedScores(map[string]int{
			"Ethanol":  80,
			"Spirit":   90,
			"Methanal": 80,
		}),
		MinScore: 1,
	}

	cands := stage.Run(store, "whatever")
	require.Len(t, cands, 3)
	assert.Equal(t, []string{"R3", "R4", "R2"}, ids(cands))
	assert.Equal(t, MatchFuzzySynonym, cands[0].MatchType)
	assert.Equal(t, 90, cands[0].Score)
	assert.Equal(t, "Spirit", cands[1].MatchedText)
	assert.Equal(t, MatchFuzzySynonym, cands[2].MatchType)
	assert.Equal(t, 80, cands[2].Score)
}

func TestFuzzyStage_NameWinsTies(t *testing.T) {
	store := testutil.SampleStore(t)
	stage := FuzzyStage{
		Similarity: fixedScores(map[string]int{
			"Acme-X":       70,
			"Formaldehyde": 70,
			"Wood alcohol": 70,
		}),
		MinScore: 1,
	}

	cands := stage.Run(store, "q")
	require.Len(t, cands, 3)
	assert.Equal(t, []string{"R2", "R1", "R4"}, ids(cands))
	assert.Equal(t, MatchFuzzyName, cands[0].MatchType)
	assert.Equal(t, MatchFuzzySynonym, cands[1].MatchType)
}

func TestFuzzyStage_LimitPerPool(t *testing.T) {
	store := testutil.SampleStore(t)
	stage := FuzzyStage{
		Similarity: fixedScores(map[string]int{
			"Ethanol":  60,
			"Methanol": 50,
			"Alcohol":  40,
			"Methanal": 30,
		}),
		Limit:      1,
		MaxResults: 5,
		MinScore:   1,
	}

	cands := stage.Run(store, "q")
	assert.Equal(t, []string{"R3"}, ids(cands), "Alcohol also belongs to R3")
}

func TestFuzzyStage_DropsUnjoinedSynonyms(t *testing.T) {
	store := testutil.SampleStore(t)
	stage := FuzzyStage{Similarity: fixedScores(map[string]int{"Orphan Name": 100}), MinScore: 1}

	assert.Empty(t, stage.Run(store, "Orphan Name"))
}

func TestFuzzyStage_MinScore(t *testing.T) {
	store := testutil.SampleStore(t)

	assert.Empty(t, FuzzyStage{MinScore: 1}.Run(store, "qqqq"))

	cands := FuzzyStage{MinScore: 0}.Run(store, "qqqq")
	assert.Equal(t, []string{"R1", "R2", "R3"}, ids(cands))
	for _, c := range cands {
		assert.Equal(t, 0, c.Score)
		assert.Equal(t, MatchFuzzyName, c.MatchType)
	}
}

func TestFuzzyStage_WeightedRatio(t *testing.T) {
	store := testutil.SampleStore(t)

	cands := FuzzyStage{MinScore: 1}.Run(store, "Etanol")
	require.NotEmpty(t, cands)
	require.LessOrEqual(t, len(cands), 3)
	assert.Equal(t, "R3", cands[0].Reference.ReferenceID)
	assert.Equal(t, MatchFuzzyName, cands[0].MatchType)
	assert.Equal(t, "Ethanol", cands[0].MatchedText)
	assert.Equal(t, 92, cands[0].Score)

	for i := 1; i < len(cands); i++ {
		assert.GreaterOrEqual(t, cands[i-1].Score, cands[i].Score)
	}
}

func TestTopN_StableTies(t *testing.T) {
	sim := SimilarityFunc(func(_, c string) int { return len(c) })
	got := topN(sim, "q", []string{"bb", "aa", "c", "dd"}, 2, 0)
	assert.Equal(t, []scoredText{{"bb", 2}, {"aa", 2}}, got)
}

func TestAssemble_Enrichment(t *testing.T) {
	store := testutil.SampleStore(t)
	r1, _ := store.Reference("R1")
	r5, _ := store.Reference("R5")

	matches := assemble(store, []Candidate{
		{Reference: r5, MatchedText: "acme", MatchType: MatchExactCode, Score: 100},
		{Reference: r1, MatchedText: "acme", MatchType: MatchExactName, Score: 100},
	})
	require.Len(t, matches, 2)

	assert.Equal(t, "R5", matches[0].ReferenceID)
	assert.Equal(t, 0, matches[0].SynonymCount)
	assert.Equal(t, "Watch", matches[0].WeightingTagTitle)
	assert.Empty(t, matches[0].Description)

	assert.Equal(t, Match{
		ReferenceID:       "R1",
		SubstanceCode:     "123-45-6",
		MatchedText:       "acme",
		MatchType:         MatchExactName,
		Score:             100,
		Name:              "Acme",
		Description:       "Industrial solvent",
		Weight:            "High",
		SynonymCount:      2,
		WeightingTagTitle: "Priority",
	}, matches[1])
}
