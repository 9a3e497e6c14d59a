package substance

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/turtacn/substance-resolver/pkg/errors"
)

// Store is the immutable, indexed view of the reference tables. It is built
// once by NewStore and is safe for concurrent reads without locking. Slices
// returned by its methods are shared and must not be modified.
type Store struct {
	references     []Reference
	synonyms       []Synonym
	weightingTags  []WeightingTag
	substanceTypes []SubstanceType
	combined       []CombinedRow

	byID   map[string]*Reference
	byCode map[string][]*Reference
	byName map[string][]*Reference

	combinedByLocalName map[string][]CombinedRow
	combinedByReference map[string][]CombinedRow
	synonymCount        map[string]int

	namePool    []string
	synonymPool []string

	stats       Stats
	fingerprint uint64
}

// Stats summarizes a built store.
type Stats struct {
	References        int
	Synonyms          int
	CombinedRows      int
	UnjoinedSynonyms  int
	WeightingTags     int
	SubstanceTypes    int
	DroppedReferences int
	DroppedSynonyms   int

	// SharedCodes lists substance codes carried by more than one reference.
	// Every synonym of such a code is attributed to all of those references.
	SharedCodes []string
}

// NewStore normalizes the tables, resolves the weighting-tag and type titles,
// builds the synonym join and the lookup indexes.
//
// Ids lose a spreadsheet ".0" suffix; substance codes are only trimmed and
// composed, so a code such as "7732.0" is kept as written.
//
// References with a blank id and synonyms with a blank local name are dropped
// and counted in Stats. A reference id that occurs twice is an integrity error.
func NewStore(t Tables) (*Store, error) {
	s := &Store{
		byID:                make(map[string]*Reference),
		byCode:              make(map[string][]*Reference),
		byName:              make(map[string][]*Reference),
		combinedByLocalName: make(map[string][]CombinedRow),
		combinedByReference: make(map[string][]CombinedRow),
		synonymCount:        make(map[string]int),
	}

	tagTitles := make(map[string]string, len(t.WeightingTags))
	for _, wt := range t.WeightingTags {
		id := NormalizeID(wt.ID)
		if id == "" {
			continue
		}
		tag := WeightingTag{ID: id, Title: NormalizeText(wt.Title)}
		s.weightingTags = append(s.weightingTags, tag)
		if _, seen := tagTitles[id]; !seen {
			tagTitles[id] = tag.Title
		}
	}

	typeTitles := make(map[string]string, len(t.SubstanceTypes))
	for _, st := range t.SubstanceTypes {
		id := NormalizeID(st.ID)
		if id == "" {
			continue
		}
		typ := SubstanceType{ID: id, Title: NormalizeText(st.Title)}
		s.substanceTypes = append(s.substanceTypes, typ)
		if _, seen := typeTitles[id]; !seen {
			typeTitles[id] = typ.Title
		}
	}

	s.references = make([]Reference, 0, len(t.References))
	for _, in := range t.References {
		ref := Reference{
			ReferenceID:    NormalizeID(in.ReferenceID),
			SubstanceCode:  NormalizeText(in.SubstanceCode),
			Name:           NormalizeText(in.Name),
			Description:    NormalizeText(in.Description),
			Weight:         NormalizeText(in.Weight),
			WeightingTagID: NormalizeID(in.WeightingTagID),
			TypeID:         NormalizeID(in.TypeID),
		}
		if ref.ReferenceID == "" {
			s.stats.DroppedReferences++
			continue
		}
		ref.WeightingTagTitle = tagTitles[ref.WeightingTagID]
		ref.TypeTitle = typeTitles[ref.TypeID]
		s.references = append(s.references, ref)
	}

	// Index only after the slice has stopped growing so pointers stay valid.
	for i := range s.references {
		ref := &s.references[i]
		if _, dup := s.byID[ref.ReferenceID]; dup {
			return nil, errors.New(errors.ErrCodeStoreIntegrity, "duplicate reference id").
				WithDetail(fmt.Sprintf("reference_id=%s", ref.ReferenceID))
		}
		s.byID[ref.ReferenceID] = ref

		if ref.SubstanceCode != "" {
			code := Fold(ref.SubstanceCode)
			s.byCode[code] = append(s.byCode[code], ref)
		}
		if ref.Name != "" {
			s.byName[Fold(ref.Name)] = append(s.byName[Fold(ref.Name)], ref)
		}
	}

	// The synonym join compares normalized codes exactly. Only the lookup
	// indexes above are case-insensitive.
	refsByExactCode := make(map[string][]*Reference, len(s.references))
	for i := range s.references {
		ref := &s.references[i]
		if ref.SubstanceCode != "" {
			refsByExactCode[ref.SubstanceCode] = append(refsByExactCode[ref.SubstanceCode], ref)
		}
	}

	seenNames := make(map[string]bool)
	for i := range s.references {
		name := s.references[i].Name
		if name != "" && !seenNames[name] {
			seenNames[name] = true
			s.namePool = append(s.namePool, name)
		}
	}

	s.synonyms = make([]Synonym, 0, len(t.Synonyms))
	seenSynonyms := make(map[string]bool)
	distinct := make(map[string]map[string]struct{})
	for _, in := range t.Synonyms {
		syn := Synonym{
			SubstanceCode: NormalizeText(in.SubstanceCode),
			LocalName:     NormalizeText(in.LocalName),
		}
		if syn.LocalName == "" {
			s.stats.DroppedSynonyms++
			continue
		}
		s.synonyms = append(s.synonyms, syn)

		if !seenSynonyms[syn.LocalName] {
			seenSynonyms[syn.LocalName] = true
			s.synonymPool = append(s.synonymPool, syn.LocalName)
		}

		key := Fold(syn.LocalName)
		owners := refsByExactCode[syn.SubstanceCode]
		if len(owners) == 0 {
			row := CombinedRow{LocalName: syn.LocalName, SubstanceCode: syn.SubstanceCode}
			s.combined = append(s.combined, row)
			s.combinedByLocalName[key] = append(s.combinedByLocalName[key], row)
			s.stats.UnjoinedSynonyms++
			continue
		}
		for _, ref := range owners {
			row := CombinedRow{LocalName: syn.LocalName, SubstanceCode: syn.SubstanceCode, Reference: ref}
			s.combined = append(s.combined, row)
			s.combinedByLocalName[key] = append(s.combinedByLocalName[key], row)
			s.combinedByReference[ref.ReferenceID] = append(s.combinedByReference[ref.ReferenceID], row)

			names, ok := distinct[ref.ReferenceID]
			if !ok {
				names = make(map[string]struct{})
				distinct[ref.ReferenceID] = names
			}
			names[key] = struct{}{}
		}
	}
	for id, names := range distinct {
		s.synonymCount[id] = len(names)
	}

	s.stats.References = len(s.references)
	s.stats.Synonyms = len(s.synonyms)
	s.stats.CombinedRows = len(s.combined)
	s.stats.WeightingTags = len(s.weightingTags)
	s.stats.SubstanceTypes = len(s.substanceTypes)
	for code, owners := range refsByExactCode {
		if len(owners) > 1 {
			s.stats.SharedCodes = append(s.stats.SharedCodes, code)
		}
	}
	sort.Strings(s.stats.SharedCodes)

	s.fingerprint = s.computeFingerprint()
	return s, nil
}

func (s *Store) computeFingerprint() uint64 {
	d := xxhash.New()
	field := func(v string) {
		_, _ = d.WriteString(v)
		_, _ = d.Write([]byte{0x1f})
	}
	for _, r := range s.references {
		field(r.ReferenceID)
		field(r.SubstanceCode)
		field(r.Name)
		field(r.Description)
		field(r.Weight)
		field(r.WeightingTagTitle)
		field(r.TypeTitle)
		_, _ = d.Write([]byte{0x1e})
	}
	for _, syn := range s.synonyms {
		field(syn.SubstanceCode)
		field(syn.LocalName)
		_, _ = d.Write([]byte{0x1e})
	}
	return d.Sum64()
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

// Reference returns the reference with the given id.
func (s *Store) Reference(referenceID string) (*Reference, bool) {
	ref, ok := s.byID[referenceID]
	return ref, ok
}

// ReferencesByCode returns references whose code equals folded, in table order.
// folded must already be passed through Fold.
func (s *Store) ReferencesByCode(folded string) []*Reference {
	return s.byCode[folded]
}

// ReferencesByName returns references whose name equals folded, in table order.
func (s *Store) ReferencesByName(folded string) []*Reference {
	return s.byName[folded]
}

// RowsByLocalName returns combined rows whose local name equals folded, in
// synonym table order. Unjoined rows are included.
func (s *Store) RowsByLocalName(folded string) []CombinedRow {
	return s.combinedByLocalName[folded]
}

// RowsByReference returns the joined rows owned by referenceID.
func (s *Store) RowsByReference(referenceID string) []CombinedRow {
	return s.combinedByReference[referenceID]
}

// SynonymCount returns the number of distinct case-folded local names joined to
// referenceID. The boolean is false when the id has no synonym rows.
func (s *Store) SynonymCount(referenceID string) (int, bool) {
	n, ok := s.synonymCount[referenceID]
	return n, ok
}

// NamePool returns the distinct non-empty reference names in first-seen order.
func (s *Store) NamePool() []string { return s.namePool }

// SynonymPool returns the distinct local names in first-seen order, including
// names whose rows are unjoined.
func (s *Store) SynonymPool() []string { return s.synonymPool }

// References returns all references in table order.
func (s *Store) References() []Reference { return s.references }

// Synonyms returns all synonym records in table order.
func (s *Store) Synonyms() []Synonym { return s.synonyms }

// CombinedRows returns the full left join in synonym table order.
func (s *Store) CombinedRows() []CombinedRow { return s.combined }

// WeightingTags returns the weighting tag table.
func (s *Store) WeightingTags() []WeightingTag { return s.weightingTags }

// SubstanceTypes returns the substance type table.
func (s *Store) SubstanceTypes() []SubstanceType { return s.substanceTypes }

// Stats returns build statistics.
func (s *Store) Stats() Stats { return s.stats }

// Fingerprint is an xxhash digest of the normalized content. Two stores built
// from identical tables share a fingerprint.
func (s *Store) Fingerprint() uint64 { return s.fingerprint }
