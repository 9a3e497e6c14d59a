package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
)

// SampleTables returns a small reference data set:
//
//   - R1 "Acme" (123-45-6) with synonyms Acme-X (twice) and AcmeAlt
//   - R2 "Formaldehyde" (50-00-0) with Formalin, Methanal and formalin
//   - R3 "Ethanol" (64-17-5) with Alcohol, Ethyl alcohol and Spirit
//   - R4 "Methanol" (67-56-1) with Wood alcohol and Spirit, no weighting tag
//   - R5 "Zeta Compound" whose code is "ACME", without synonyms
//
// plus two synonyms for the unknown code 99-99-9 ("Spirit", "Orphan Name").
func SampleTables() substance.Tables {
	return substance.Tables{
		References: []substance.Reference{
			{ReferenceID: "R1", SubstanceCode: "123-45-6", Name: "Acme", Description: "Industrial solvent", Weight: "High", WeightingTagID: "1", TypeID: "1"},
			{ReferenceID: "R2", SubstanceCode: "50-00-0", Name: "Formaldehyde", Description: "Aldehyde", Weight: "Medium", WeightingTagID: "2", TypeID: "2"},
			{ReferenceID: "R3", SubstanceCode: "64-17-5", Name: "Ethanol", Description: "Primary alcohol", Weight: "Low", WeightingTagID: "1", TypeID: "3"},
			{ReferenceID: "R4", SubstanceCode: "67-56-1", Name: "Methanol", Weight: "High", TypeID: "3"},
			{ReferenceID: "R5", SubstanceCode: "ACME", Name: "Zeta Compound", WeightingTagID: "2", TypeID: "1"},
		},
		Synonyms: []substance.Synonym{
			{SubstanceCode: "123-45-6", LocalName: "Acme-X"},
			{SubstanceCode: "123-45-6", LocalName: "AcmeAlt"},
			{SubstanceCode: "123-45-6", LocalName: "Acme-X"},
			{SubstanceCode: "50-00-0", LocalName: "Formalin"},
			{SubstanceCode: "50-00-0", LocalName: "Methanal"},
			{SubstanceCode: "50-00-0", LocalName: "formalin"},
			{SubstanceCode: "64-17-5", LocalName: "Alcohol"},
			{SubstanceCode: "64-17-5", LocalName: "Ethyl alcohol"},
			{SubstanceCode: "64-17-5", LocalName: "Spirit"},
			{SubstanceCode: "67-56-1", LocalName: "Wood alcohol"},
			{SubstanceCode: "67-56-1", LocalName: "Spirit"},
			{SubstanceCode: "99-99-9", LocalName: "Spirit"},
			{SubstanceCode: "99-99-9", LocalName: "Orphan Name"},
		},
		WeightingTags: []substance.WeightingTag{
			{ID: "1", Title: "Priority"},
			{ID: "2", Title: "Watch"},
		},
		SubstanceTypes: []substance.SubstanceType{
			{ID: "1", Title: "Solvent"},
			{ID: "2", Title: "Aldehyde"},
			{ID: "3", Title: "Alcohol"},
		},
	}
}

// MustStore builds a Store from t and fails the test on error.
func MustStore(tb testing.TB, t substance.Tables) *substance.Store {
	tb.Helper()
	store, err := substance.NewStore(t)
	require.NoError(tb, err)
	return store
}

// SampleStore builds a Store from SampleTables.
func SampleStore(tb testing.TB) *substance.Store {
	tb.Helper()
	return MustStore(tb, SampleTables())
}
