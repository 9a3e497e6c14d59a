package resolution

import (
	"sort"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
)

// Fuzzy stage defaults.
const (
	DefaultFuzzyLimit      = 10
	DefaultMaxFuzzyResults = 3
	DefaultMinFuzzyScore   = 1
)

// FuzzyStage searches the name and synonym pools by similarity. It is only
// consulted when the exact stage found nothing.
type FuzzyStage struct {
	Similarity Similarity
	Limit      int
	MaxResults int
	MinScore   int
}

// scoredText is one pool entry with its similarity to the query.
type scoredText struct {
	Text  string
	Score int
}

// Run scores both pools, expands the best texts into candidates and accepts
// up to MaxResults distinct references.
func (s FuzzyStage) Run(store *substance.Store, query string) []Candidate {
	sim := s.Similarity
	if sim == nil {
		sim = WeightedRatio{}
	}
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultFuzzyLimit
	}
	maxResults := s.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxFuzzyResults
	}

	var candidates []Candidate
	for _, hit := range topN(sim, query, store.NamePool(), limit, s.MinScore) {
		for _, ref := range store.ReferencesByName(substance.Fold(hit.Text)) {
			candidates = append(candidates, Candidate{
				Reference: ref, MatchedText: hit.Text, MatchType: MatchFuzzyName, Score: hit.Score,
			})
		}
	}
	for _, hit := range topN(sim, query, store.SynonymPool(), limit, s.MinScore) {
		for _, row := range store.RowsByLocalName(substance.Fold(hit.Text)) {
			if !row.Joined() {
				continue
			}
			candidates = append(candidates, Candidate{
				Reference: row.Reference, MatchedText: hit.Text, MatchType: MatchFuzzySynonym, Score: hit.Score,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].MatchType.priority() < candidates[j].MatchType.priority()
	})

	acc := newAcceptor()
	for _, c := range candidates {
		if acc.accept(c) && len(acc.out) >= maxResults {
			break
		}
	}
	return acc.out
}

// topN returns the limit best-scoring pool entries, best first. Equal scores
// keep pool order. Entries scoring below minScore are dropped.
func topN(sim Similarity, query string, pool []string, limit, minScore int) []scoredText {
	scored := make([]scoredText, 0, len(pool))
	for _, text := range pool {
		score := sim.Score(query, text)
		if score < minScore {
			continue
		}
		scored = append(scored, scoredText{Text: text, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
