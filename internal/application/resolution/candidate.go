package resolution

import "github.com/turtacn/substance-resolver/internal/domain/substance"

// MatchType labels how a result was found.
type MatchType string

const (
	MatchExactCode    MatchType = "exact-code"
	MatchExactName    MatchType = "exact-name"
	MatchExactSynonym MatchType = "exact-synonym"
	MatchFuzzyName    MatchType = "fuzzy-name"
	MatchFuzzySynonym MatchType = "fuzzy-synonym"
	MatchNone         MatchType = "no-match"
)

// IsExact reports whether t comes from the exact stage.
func (t MatchType) IsExact() bool {
	return t == MatchExactCode || t == MatchExactName || t == MatchExactSynonym
}

// IsFuzzy reports whether t comes from the fuzzy stage.
func (t MatchType) IsFuzzy() bool {
	return t == MatchFuzzyName || t == MatchFuzzySynonym
}

// priority orders fuzzy types when scores tie.
func (t MatchType) priority() int {
	switch t {
	case MatchFuzzyName:
		return 1
	case MatchFuzzySynonym:
		return 2
	}
	return 99
}

// ExactScore is the score of every exact-stage candidate.
const ExactScore = 100

// Candidate is a tentative result before enrichment.
type Candidate struct {
	Reference   *substance.Reference
	MatchedText string
	MatchType   MatchType
	Score       int
}

// acceptor keeps first-seen candidates per reference id.
type acceptor struct {
	seen map[string]struct{}
	out  []Candidate
}

func newAcceptor() *acceptor {
	return &acceptor{seen: make(map[string]struct{})}
}

// accept appends c unless its reference id was already accepted.
func (a *acceptor) accept(c Candidate) bool {
	id := c.Reference.ReferenceID
	if _, dup := a.seen[id]; dup {
		return false
	}
	a.seen[id] = struct{}{}
	a.out = append(a.out, c)
	return true
}
