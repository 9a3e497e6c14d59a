package resolution

import "github.com/turtacn/substance-resolver/internal/domain/substance"

// DefaultSynonymPassLimit caps the rows considered by the synonym pass.
const DefaultSynonymPassLimit = 3

// ExactStage runs the code, name and synonym equality passes. All three
// passes run on every call; a reference already captured is skipped by the
// later passes.
type ExactStage struct {
	SynonymPassLimit int
}

// Run matches query against store. query is compared after substance.Fold.
// The boolean is false when no pass produced a candidate.
func (s ExactStage) Run(store *substance.Store, query string) ([]Candidate, bool) {
	key := substance.Fold(query)
	if key == "" {
		return nil, false
	}
	acc := newAcceptor()

	for _, ref := range store.ReferencesByCode(key) {
		acc.accept(Candidate{Reference: ref, MatchedText: query, MatchType: MatchExactCode, Score: ExactScore})
	}
	for _, ref := range store.ReferencesByName(key) {
		acc.accept(Candidate{Reference: ref, MatchedText: query, MatchType: MatchExactName, Score: ExactScore})
	}

	limit := s.SynonymPassLimit
	if limit <= 0 {
		limit = DefaultSynonymPassLimit
	}
	rows := store.RowsByLocalName(key)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for _, row := range rows {
		if !row.Joined() {
			continue
		}
		acc.accept(Candidate{Reference: row.Reference, MatchedText: row.LocalName, MatchType: MatchExactSynonym, Score: ExactScore})
	}

	return acc.out, len(acc.out) > 0
}
