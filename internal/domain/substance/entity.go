// Package substance holds the reference data model of the resolver: canonical
// substances, their sourcing synonyms, weighting tags and substance types, and
// the immutable Store that joins them for matching.
//
// Absent values are represented by the zero value (empty string or nil
// pointer). Placeholder text such as "Not Available" is produced only by the
// wire types in pkg/types/substance.
package substance

// Reference is a canonical substance record.
type Reference struct {
	// ReferenceID is the primary identity, normalized with NormalizeID.
	ReferenceID string `json:"reference_id" yaml:"reference_id"`

	// SubstanceCode is a regulatory or chemical identifier (for example a CAS
	// number). Synonyms join on this field. It is trimmed but otherwise kept
	// verbatim.
	SubstanceCode string `json:"substance_code" yaml:"substance_code"`

	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Weight      string `json:"weight" yaml:"weight"`

	WeightingTagID string `json:"weighting_tag_id" yaml:"weighting_tag_id"`
	TypeID         string `json:"type_id" yaml:"type_id"`

	// WeightingTagTitle and TypeTitle are resolved by NewStore; any value
	// supplied by a source is overwritten.
	WeightingTagTitle string `json:"-" yaml:"-"`
	TypeTitle         string `json:"-" yaml:"-"`
}

// Synonym is one sourcing observation of a local name for a substance code.
// The same pair may appear more than once.
type Synonym struct {
	SubstanceCode string `json:"substance_code" yaml:"substance_code"`
	LocalName     string `json:"local_name" yaml:"local_name"`
}

// WeightingTag maps a weighting tag id to its display title.
type WeightingTag struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// SubstanceType maps a substance type id to its display title.
type SubstanceType struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// CombinedRow is one row of the synonym-to-reference left join. Reference is
// nil when no reference carries the synonym's substance code.
type CombinedRow struct {
	LocalName     string
	SubstanceCode string
	Reference     *Reference
}

// Joined reports whether the row resolved to a reference.
func (r CombinedRow) Joined() bool {
	return r.Reference != nil
}

// ReferenceID returns the joined reference id, or "" for an unjoined row.
func (r CombinedRow) ReferenceID() string {
	if r.Reference == nil {
		return ""
	}
	return r.Reference.ReferenceID
}

// Tables is the raw input handed over by a Source.
type Tables struct {
	References     []Reference     `json:"references" yaml:"references"`
	Synonyms       []Synonym       `json:"synonyms" yaml:"synonyms"`
	WeightingTags  []WeightingTag  `json:"weighting_tags" yaml:"weighting_tags"`
	SubstanceTypes []SubstanceType `json:"substance_types" yaml:"substance_types"`
}
