package substance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/testutil"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

func TestNewStore_ResolvesTitles(t *testing.T) {
	store := testutil.SampleStore(t)

	r1, ok := store.Reference("R1")
	require.True(t, ok)
	assert.Equal(t, "Priority", r1.WeightingTagTitle)
	assert.Equal(t, "Solvent", r1.TypeTitle)

	r4, ok := store.Reference("R4")
	require.True(t, ok)
	assert.Empty(t, r4.WeightingTagTitle, "reference without tag has no title")
}

func TestNewStore_NormalizesIDs(t *testing.T) {
	store := testutil.MustStore(t, substance.Tables{
		References: []substance.Reference{
			{ReferenceID: " 7.0 ", SubstanceCode: " C1 ", Name: " Seven ", WeightingTagID: "3.0"},
		},
		Synonyms:      []substance.Synonym{{SubstanceCode: "C1", LocalName: "VII"}},
		WeightingTags: []substance.WeightingTag{{ID: "3", Title: "Tagged"}},
	})

	ref, ok := store.Reference("7")
	require.True(t, ok)
	assert.Equal(t, "C1", ref.SubstanceCode)
	assert.Equal(t, "Seven", ref.Name)
	assert.Equal(t, "Tagged", ref.WeightingTagTitle)

	n, ok := store.SynonymCount("7")
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestNewStore_KeepsNumericLookingCodes(t *testing.T) {
	store := testutil.MustStore(t, substance.Tables{
		References: []substance.Reference{
			{ReferenceID: "42.0", SubstanceCode: " 7732.0 ", Name: "Water"},
		},
		Synonyms: []substance.Synonym{
			{SubstanceCode: "7732.0", LocalName: "Dihydrogen monoxide"},
			{SubstanceCode: "7732", LocalName: "Other code"},
		},
	})

	ref, ok := store.Reference("42")
	require.True(t, ok)
	assert.Equal(t, "7732.0", ref.SubstanceCode)
	assert.Equal(t, []*substance.Reference{ref}, store.ReferencesByCode("7732.0"))
	assert.Empty(t, store.ReferencesByCode("7732"))

	n, ok := store.SynonymCount("42")
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Stats().UnjoinedSynonyms)
}

func TestNewStore_DuplicateReferenceID(t *testing.T) {
	_, err := substance.NewStore(substance.Tables{
		References: []substance.Reference{
			{ReferenceID: "1", Name: "A"},
			{ReferenceID: "1.0", Name: "B"},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStoreIntegrity))
}

func TestNewStore_DropsBlankRows(t *testing.T) {
	store := testutil.MustStore(t, substance.Tables{
		References: []substance.Reference{
			{ReferenceID: "  ", Name: "No id"},
			{ReferenceID: "1", SubstanceCode: "C1", Name: "Kept"},
		},
		Synonyms: []substance.Synonym{
			{SubstanceCode: "C1", LocalName: " "},
			{SubstanceCode: "C1", LocalName: "Alias"},
		},
	})

	st := store.Stats()
	assert.Equal(t, 1, st.References)
	assert.Equal(t, 1, st.DroppedReferences)
	assert.Equal(t, 1, st.Synonyms)
	assert.Equal(t, 1, st.DroppedSynonyms)
}

func TestStore_CombinedViewIsLeftJoin(t *testing.T) {
	store := testutil.SampleStore(t)

	st := store.Stats()
	assert.Equal(t, 13, st.Synonyms)
	assert.Equal(t, 13, st.CombinedRows)
	assert.Equal(t, 2, st.UnjoinedSynonyms)

	rows := store.RowsByLocalName("spirit")
	require.Len(t, rows, 3)
	assert.Equal(t, "R3", rows[0].ReferenceID())
	assert.Equal(t, "R4", rows[1].ReferenceID())
	assert.False(t, rows[2].Joined())
	assert.Equal(t, "", rows[2].ReferenceID())
	assert.Equal(t, "99-99-9", rows[2].SubstanceCode)
}

func TestStore_SharedCodeJoinsEveryOwner(t *testing.T) {
	store := testutil.MustStore(t, substance.Tables{
		References: []substance.Reference{
			{ReferenceID: "A", SubstanceCode: "111-11-1", Name: "Alpha"},
			{ReferenceID: "B", SubstanceCode: "111-11-1", Name: "Beta"},
		},
		Synonyms: []substance.Synonym{{SubstanceCode: "111-11-1", LocalName: "Shared"}},
	})

	assert.Equal(t, []string{"111-11-1"}, store.Stats().SharedCodes)
	assert.Len(t, store.RowsByLocalName("shared"), 2)
	assert.Len(t, store.RowsByReference("A"), 1)
	assert.Len(t, store.RowsByReference("B"), 1)
}

func TestStore_SynonymCountIsCaseInsensitiveDistinct(t *testing.T) {
	store := testutil.SampleStore(t)

	n, ok := store.SynonymCount("R1")
	assert.True(t, ok)
	assert.Equal(t, 2, n, "Acme-X is observed twice")

	n, ok = store.SynonymCount("R2")
	assert.True(t, ok)
	assert.Equal(t, 2, n, "Formalin and formalin count once")

	_, ok = store.SynonymCount("R5")
	assert.False(t, ok)
}

func TestStore_LookupIndexes(t *testing.T) {
	store := testutil.SampleStore(t)

	byCode := store.ReferencesByCode(substance.Fold("acme"))
	require.Len(t, byCode, 1)
	assert.Equal(t, "R5", byCode[0].ReferenceID)

	byName := store.ReferencesByName(substance.Fold("ACME"))
	require.Len(t, byName, 1)
	assert.Equal(t, "R1", byName[0].ReferenceID)

	assert.Empty(t, store.ReferencesByName("unknown"))
}

func TestStore_Pools(t *testing.T) {
	store := testutil.SampleStore(t)

	assert.Equal(t, []string{"Acme", "Formaldehyde", "Ethanol", "Methanol", "Zeta Compound"}, store.NamePool())
	assert.Equal(t, []string{
		"Acme-X", "AcmeAlt", "Formalin", "Methanal", "formalin", "Alcohol",
		"Ethyl alcohol", "Spirit", "Wood alcohol", "Orphan Name",
	}, store.SynonymPool())
}

func TestStore_Fingerprint(t *testing.T) {
	a := testutil.SampleStore(t)
	b := testutil.SampleStore(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	changed := testutil.SampleTables()
	changed.Synonyms = append(changed.Synonyms, substance.Synonym{SubstanceCode: "50-00-0", LocalName: "Formol"})
	c := testutil.MustStore(t, changed)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
