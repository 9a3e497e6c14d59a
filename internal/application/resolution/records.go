package resolution

import (
	wire "github.com/turtacn/substance-resolver/pkg/types/substance"
)

// Records renders r for the wire. A resolution without matches becomes the
// single no-match record.
func (r *Resolution) Records() []wire.MatchRecord {
	if !r.Found() {
		query := ""
		if r != nil {
			query = r.Query
		}
		return []wire.MatchRecord{wire.NoMatchRecord(query)}
	}
	out := make([]wire.MatchRecord, 0, len(r.Matches))
	for _, m := range r.Matches {
		out = append(out, wire.MatchRecord{
			ReferenceID:       m.ReferenceID,
			SubstanceCode:     m.SubstanceCode,
			MatchedText:       m.MatchedText,
			MatchType:         string(m.MatchType),
			Score:             m.Score,
			Name:              m.Name,
			Description:       m.Description,
			Weight:            m.Weight,
			SynonymCount:      m.SynonymCount,
			WeightingTagTitle: m.WeightingTagTitle,
		}.Render())
	}
	return out
}

// Response renders g for the wire.
func (g *SynonymGroups) Response() wire.SynonymLookupResponse {
	if g == nil || !g.Found {
		term := ""
		if g != nil {
			term = g.Term
		}
		return wire.SynonymsNotFound(term)
	}
	groups := make([]wire.SynonymGroup, 0, len(g.Groups))
	for _, grp := range g.Groups {
		synonyms := grp.Synonyms
		if synonyms == nil {
			synonyms = []string{}
		}
		groups = append(groups, wire.SynonymGroup{
			ReferenceID:   grp.ReferenceID,
			SubstanceCode: wire.OrNotAvailable(grp.SubstanceCode),
			Name:          wire.OrNotAvailable(grp.Name),
			Synonyms:      synonyms,
		})
	}
	return wire.SynonymLookupResponse{Found: true, Term: g.Term, Groups: groups}
}
