package resolution

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Similarity scores how closely candidate resembles query. Implementations
// return an integer in [0,100]; identical inputs score 100 and inputs with
// nothing in common score at or near 0.
type Similarity interface {
	Score(query, candidate string) int
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(query, candidate string) int

// Score calls f.
func (f SimilarityFunc) Score(query, candidate string) int { return f(query, candidate) }

// AlgorithmWRatio selects WeightedRatio.
const AlgorithmWRatio = "wratio"

var edlibAlgorithms = map[string]edlib.Algorithm{
	"levenshtein":         edlib.Levenshtein,
	"damerau-levenshtein": edlib.DamerauLevenshtein,
	"jaro":                edlib.Jaro,
	"jaro-winkler":        edlib.JaroWinkler,
	"lcs":                 edlib.Lcs,
	"cosine":              edlib.Cosine,
	"jaccard":             edlib.Jaccard,
	"sorensen-dice":       edlib.SorensenDice,
	"qgram":               edlib.Qgram,
}

// NewSimilarity returns the scorer registered under algorithm. An empty name
// selects WeightedRatio.
func NewSimilarity(algorithm string) (Similarity, error) {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	if name == "" || name == AlgorithmWRatio {
		return WeightedRatio{}, nil
	}
	algo, ok := edlibAlgorithms[name]
	if !ok {
		return nil, fmt.Errorf("unknown similarity algorithm %q", algorithm)
	}
	return EdlibSimilarity{Algorithm: algo}, nil
}

// SimilarityAlgorithms lists the names accepted by NewSimilarity.
func SimilarityAlgorithms() []string {
	names := make([]string, 0, len(edlibAlgorithms)+1)
	names = append(names, AlgorithmWRatio)
	for name := range edlibAlgorithms {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

// ─────────────────────────────────────────────────────────────────────────────
// WeightedRatio
// ─────────────────────────────────────────────────────────────────────────────

const (
	unbaseScale         = 0.95
	partialScale        = 0.90
	longPartialScale    = 0.60
	partialLengthRatio  = 1.5
	longPartialLenRatio = 8
)

// WeightedRatio is the default scorer. Both inputs are lower-cased and every
// character that is not a letter or digit becomes a space. The score is the
// best of:
//
//   - the indel ratio 2·LCS/(len a + len b);
//   - token-sort and token-set ratios, scaled by 0.95;
//   - when one string is at least 1.5 times longer, the partial (best
//     aligned window) variants of all of the above, scaled by 0.9, or by 0.6
//     once the length ratio exceeds 8.
//
// Lengths are counted in runes.
type WeightedRatio struct{}

// Score implements Similarity.
func (WeightedRatio) Score(query, candidate string) int {
	p1, p2 := processString(query), processString(candidate)
	if p1 == "" || p2 == "" {
		return 0
	}

	base := float64(ratio(p1, p2))
	l1, l2 := utf8.RuneCountInString(p1), utf8.RuneCountInString(p2)
	lenRatio := float64(max(l1, l2)) / float64(min(l1, l2))

	if lenRatio < partialLengthRatio {
		tsor := float64(ratio(tokenSort(p1), tokenSort(p2))) * unbaseScale
		tser := float64(tokenSetRatio(p1, p2, ratio)) * unbaseScale
		return roundScore(max(base, tsor, tser))
	}

	scale := partialScale
	if lenRatio > longPartialLenRatio {
		scale = longPartialScale
	}
	partial := float64(partialRatio(p1, p2)) * scale
	ptsor := float64(partialRatio(tokenSort(p1), tokenSort(p2))) * unbaseScale * scale
	ptser := float64(tokenSetRatio(p1, p2, partialRatio)) * unbaseScale * scale
	return roundScore(max(base, partial, ptsor, ptser))
}

func processString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// ratio is the indel similarity of a and b on a 0..100 scale.
func ratio(a, b string) int {
	return roundScore(100 * indelRatio([]rune(a), []rune(b)))
}

func indelRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	lcs := edlib.LCS(string(a), string(b))
	return 2 * float64(lcs) / float64(total)
}

// partialRatio aligns the shorter string against every window of the longer
// one and keeps the best indel ratio.
func partialRatio(a, b string) int {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}

	best := 0.0
	for start := 0; start+len(shorter) <= len(longer); start++ {
		r := indelRatio(shorter, longer[start:start+len(shorter)])
		if r > 0.995 {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return roundScore(100 * best)
}

func tokenSort(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// tokenSetRatio compares the sorted token intersection with each side's
// intersection-plus-remainder and keeps the best score from scorer.
func tokenSetRatio(a, b string, scorer func(string, string) int) int {
	t1, t2 := tokenSet(a), tokenSet(b)
	if len(t1) == 0 || len(t2) == 0 {
		return 0
	}

	var inter, diff1, diff2 []string
	for tok := range t1 {
		if _, ok := t2[tok]; ok {
			inter = append(inter, tok)
		} else {
			diff1 = append(diff1, tok)
		}
	}
	for tok := range t2 {
		if _, ok := t1[tok]; !ok {
			diff2 = append(diff2, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(diff1)
	sort.Strings(diff2)

	sect := strings.Join(inter, " ")
	combined1 := strings.TrimSpace(sect + " " + strings.Join(diff1, " "))
	combined2 := strings.TrimSpace(sect + " " + strings.Join(diff2, " "))

	return max(scorer(sect, combined1), scorer(sect, combined2), scorer(combined1, combined2))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

func roundScore(v float64) int {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 100:
		return 100
	}
	return int(math.Round(v))
}

// ─────────────────────────────────────────────────────────────────────────────
// go-edlib
// ─────────────────────────────────────────────────────────────────────────────

// EdlibSimilarity scores with a go-edlib string similarity algorithm after the
// same lower-casing and punctuation stripping as WeightedRatio.
type EdlibSimilarity struct {
	Algorithm edlib.Algorithm
}

// Score implements Similarity. Inputs that reduce to nothing score 0.
func (e EdlibSimilarity) Score(query, candidate string) int {
	p1, p2 := processString(query), processString(candidate)
	if p1 == "" || p2 == "" {
		return 0
	}
	sim, err := edlib.StringsSimilarity(p1, p2, e.Algorithm)
	if err != nil {
		return 0
	}
	return roundScore(100 * float64(sim))
}
