// Package substance defines the wire format of the resolver API: match
// records, synonym lookup responses and the synonym insights report. It is
// the only place where absent values become the "Not Available" and
// "NOT FOUND" placeholders.
package substance

import (
	"encoding/json"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Placeholders
// ─────────────────────────────────────────────────────────────────────────────

const (
	// NotAvailable replaces absent text fields.
	NotAvailable = "Not Available"

	// NotFound fills the identifiers of the no-match record.
	NotFound = "NOT FOUND"

	// MatchTypeNone is the match type of the no-match record.
	MatchTypeNone = "no-match"
)

// OrNotAvailable returns s, or NotAvailable when s is blank.
func OrNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Resolution
// ─────────────────────────────────────────────────────────────────────────────

// MatchRecord is one result of GET /match.
type MatchRecord struct {
	ReferenceID       string `json:"reference_id"`
	SubstanceCode     string `json:"substance_code"`
	MatchedText       string `json:"matched_text"`
	MatchType         string `json:"match_type"`
	Score             int    `json:"score"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Weight            string `json:"weight"`
	SynonymCount      int    `json:"synonym_count"`
	WeightingTagTitle string `json:"weighting_tag_title"`
}

// Render substitutes NotAvailable for every absent text field.
func (r MatchRecord) Render() MatchRecord {
	r.SubstanceCode = OrNotAvailable(r.SubstanceCode)
	r.Name = OrNotAvailable(r.Name)
	r.Description = OrNotAvailable(r.Description)
	r.Weight = OrNotAvailable(r.Weight)
	r.WeightingTagTitle = OrNotAvailable(r.WeightingTagTitle)
	return r
}

// IsNoMatch reports whether r is the no-match record.
func (r MatchRecord) IsNoMatch() bool {
	return r.MatchType == MatchTypeNone
}

// NoMatchRecord is the single record returned when nothing matched query.
func NoMatchRecord(query string) MatchRecord {
	return MatchRecord{
		ReferenceID:       NotFound,
		SubstanceCode:     NotFound,
		MatchedText:       query,
		MatchType:         MatchTypeNone,
		Score:             0,
		Name:              NotAvailable,
		Description:       NotAvailable,
		Weight:            NotAvailable,
		SynonymCount:      0,
		WeightingTagTitle: NotAvailable,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Synonym lookup
// ─────────────────────────────────────────────────────────────────────────────

// SynonymGroup lists the synonyms of one reference.
type SynonymGroup struct {
	ReferenceID   string   `json:"reference_id"`
	SubstanceCode string   `json:"substance_code"`
	Name          string   `json:"name"`
	Synonyms      []string `json:"synonyms"`
}

// SynonymLookupResponse is the body of GET /synonyms_lookup. A found
// response carries groups; a not-found one carries an empty synonyms list.
type SynonymLookupResponse struct {
	Found    bool           `json:"found"`
	Term     string         `json:"term"`
	Groups   []SynonymGroup `json:"groups"`
	Synonyms []string       `json:"synonyms"`
}

// MarshalJSON emits {found,term,groups} or {found,term,synonyms:[]}.
func (r SynonymLookupResponse) MarshalJSON() ([]byte, error) {
	if !r.Found {
		return json.Marshal(struct {
			Found    bool     `json:"found"`
			Term     string   `json:"term"`
			Synonyms []string `json:"synonyms"`
		}{Term: r.Term, Synonyms: []string{}})
	}
	groups := r.Groups
	if groups == nil {
		groups = []SynonymGroup{}
	}
	return json.Marshal(struct {
		Found  bool           `json:"found"`
		Term   string         `json:"term"`
		Groups []SynonymGroup `json:"groups"`
	}{Found: true, Term: r.Term, Groups: groups})
}

// SynonymsNotFound builds the not-found lookup response.
func SynonymsNotFound(term string) SynonymLookupResponse {
	return SynonymLookupResponse{Found: false, Term: term, Synonyms: []string{}}
}

// ─────────────────────────────────────────────────────────────────────────────
// Insights
// ─────────────────────────────────────────────────────────────────────────────

// SynonymSubstanceCount is a local name with the number of distinct substance
// codes it is recorded for.
type SynonymSubstanceCount struct {
	LocalName              string `json:"local_name"`
	DistinctSubstanceCount int    `json:"distinct_substance_count"`
}

// DistributionBucket counts the synonyms mapping to MappedSubstances codes.
type DistributionBucket struct {
	MappedSubstances int `json:"mapped_substances"`
	SynonymCount     int `json:"synonym_count"`
}

// SubstanceSynonymCount is a substance code with a synonym tally.
type SubstanceSynonymCount struct {
	SubstanceCode string `json:"substance_code"`
	Name          string `json:"name"`
	SynonymCount  int    `json:"synonym_count"`
}

// TypeCount is the number of references of one substance type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TagCount is the number of references carrying one weighting tag.
type TagCount struct {
	WeightingTagID string `json:"weighting_tag_id"`
	Title          string `json:"title"`
	Count          int    `json:"count"`
}

// TypeAverage is the mean synonym row count of the references of one type.
type TypeAverage struct {
	Type                string  `json:"type"`
	AverageSynonymCount float64 `json:"average_synonym_count"`
}

// InsightsReport is the body of GET /synonyms.
type InsightsReport struct {
	SynonymCounts                []SynonymSubstanceCount `json:"synonym_counts"`
	MultiSubstanceSynonyms       []SynonymSubstanceCount `json:"multi_substance_synonyms"`
	MultiSubstanceSynonymsCount  int                     `json:"multi_substance_synonyms_count"`
	SingleSubstanceSynonymsCount int                     `json:"single_substance_synonyms_count"`
	AmbiguousTop10               []SynonymSubstanceCount `json:"ambiguous_top_10"`
	TotalSynonyms                int                     `json:"total_synonyms"`
	Distribution                 []DistributionBucket    `json:"distribution"`
	TopSubstancesBySynonyms      []SubstanceSynonymCount `json:"top_substances_by_synonyms"`
	TopSynonyms                  []SubstanceSynonymCount `json:"top_synonyms"`
	SubstancesPerType            []TypeCount             `json:"substances_per_type"`
	WeightsPerTag                []TagCount              `json:"weights_per_tag"`
	MultiSynonymSubstances       []SubstanceSynonymCount `json:"multi_synonym_substances"`
	SingleSynonymSubstances      []SubstanceSynonymCount `json:"single_synonym_substances"`
	AvgSynonymCountPerType       []TypeAverage           `json:"avg_synonym_count_per_type"`
}
