package resolution

import (
	"sort"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
)

// SynonymGroup lists every synonym joined to one reference.
type SynonymGroup struct {
	ReferenceID   string   `json:"reference_id"`
	SubstanceCode string   `json:"substance_code"`
	Name          string   `json:"name"`
	Synonyms      []string `json:"synonyms"`
}

// SynonymGroups is the outcome of a synonym lookup. Term is the folded term.
type SynonymGroups struct {
	Term   string         `json:"term"`
	Found  bool           `json:"found"`
	Groups []SynonymGroup `json:"groups"`
}

// groupSynonyms collects the references whose name or synonym equals term and
// returns one group per reference, ordered by reference id. Synonyms are
// sorted and deduplicated case-sensitively.
func groupSynonyms(store *substance.Store, term string) *SynonymGroups {
	key := substance.Fold(term)
	result := &SynonymGroups{Term: key}
	if key == "" {
		return result
	}

	refs := make(map[string]*substance.Reference)
	for _, ref := range store.ReferencesByName(key) {
		refs[ref.ReferenceID] = ref
	}
	for _, row := range store.RowsByLocalName(key) {
		if row.Joined() {
			refs[row.ReferenceID()] = row.Reference
		}
	}
	if len(refs) == 0 {
		return result
	}

	ids := make([]string, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result.Found = true
	result.Groups = make([]SynonymGroup, 0, len(ids))
	for _, id := range ids {
		ref := refs[id]
		result.Groups = append(result.Groups, SynonymGroup{
			ReferenceID:   id,
			SubstanceCode: ref.SubstanceCode,
			Name:          ref.Name,
			Synonyms:      distinctSorted(store.RowsByReference(id)),
		})
	}
	return result
}

func distinctSorted(rows []substance.CombinedRow) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.LocalName]; dup {
			continue
		}
		seen[row.LocalName] = struct{}{}
		out = append(out, row.LocalName)
	}
	sort.Strings(out)
	return out
}
