package resolution

import "github.com/turtacn/substance-resolver/internal/domain/substance"

// Match is one enriched resolution result. Empty strings stand for absent
// values.
type Match struct {
	ReferenceID       string    `json:"reference_id"`
	SubstanceCode     string    `json:"substance_code"`
	MatchedText       string    `json:"matched_text"`
	MatchType         MatchType `json:"match_type"`
	Score             int       `json:"score"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Weight            string    `json:"weight"`
	SynonymCount      int       `json:"synonym_count"`
	WeightingTagTitle string    `json:"weighting_tag_title"`
}

// Resolution is the outcome of resolving one query. An empty Matches slice is
// the no-match result.
type Resolution struct {
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
}

// Found reports whether any match was accepted.
func (r *Resolution) Found() bool {
	return r != nil && len(r.Matches) > 0
}

// Outcome returns the match type of the first match, or MatchNone.
func (r *Resolution) Outcome() MatchType {
	if !r.Found() {
		return MatchNone
	}
	return r.Matches[0].MatchType
}

// assemble enriches candidates in acceptance order.
func assemble(store *substance.Store, candidates []Candidate) []Match {
	out := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		ref := c.Reference
		out = append(out, Match{
			ReferenceID:       ref.ReferenceID,
			SubstanceCode:     ref.SubstanceCode,
			MatchedText:       c.MatchedText,
			MatchType:         c.MatchType,
			Score:             c.Score,
			Name:              ref.Name,
			Description:       ref.Description,
			Weight:            ref.Weight,
			SynonymCount:      synonymCount(store, ref.ReferenceID),
			WeightingTagTitle: ref.WeightingTagTitle,
		})
	}
	return out
}

// synonymCount never fails; an id without synonym rows counts 0.
func synonymCount(store *substance.Store, referenceID string) int {
	n, ok := store.SynonymCount(referenceID)
	if !ok {
		return 0
	}
	return n
}
