// Package reporting computes the synonym insights report from the reference
// store.
package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
	wire "github.com/turtacn/substance-resolver/pkg/types/substance"
)

// topN bounds every ranked list in the report.
const topN = 10

// Service produces aggregate statistics over the reference tables.
type Service interface {
	SynonymInsights(ctx context.Context) (*wire.InsightsReport, error)
}

type serviceImpl struct {
	provider substance.Provider
	logger   logging.Logger
}

// NewService creates a reporting service reading the store from provider.
func NewService(provider substance.Provider, logger logging.Logger) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{provider: provider, logger: logger.Named("reporting")}
}

func (s *serviceImpl) SynonymInsights(ctx context.Context) (*wire.InsightsReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "insights request cancelled")
	}
	var store *substance.Store
	if s.provider != nil {
		store = s.provider.Current()
	}
	if store == nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "reference store is not loaded")
	}

	start := time.Now()
	report := Build(store)
	s.logger.Debug("synonym insights computed",
		logging.Int("total_synonyms", report.TotalSynonyms),
		logging.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// Build computes the report. Synonym statistics cover every synonym row,
// joined or not; per-type and per-tag statistics cover references.
func Build(store *substance.Store) *wire.InsightsReport {
	report := &wire.InsightsReport{}
	synonyms := store.Synonyms()
	refs := store.References()

	// local name → distinct codes
	codesByName := make(map[string]map[string]struct{})
	// code → distinct local names, and row count
	namesByCode := make(map[string]map[string]struct{})
	rowsByCode := make(map[string]int)
	for _, syn := range synonyms {
		addToSet(codesByName, syn.LocalName, syn.SubstanceCode)
		addToSet(namesByCode, syn.SubstanceCode, syn.LocalName)
		rowsByCode[syn.SubstanceCode]++
	}

	nameByCode := make(map[string]string)
	for _, ref := range refs {
		if _, ok := nameByCode[ref.SubstanceCode]; !ok {
			nameByCode[ref.SubstanceCode] = ref.Name
		}
	}

	buildSynonymCounts(report, codesByName)

	distinctNames := make(map[string]int, len(namesByCode))
	for code, names := range namesByCode {
		distinctNames[code] = len(names)
	}
	report.TopSubstancesBySynonyms = limit(rankCodes(distinctNames, nameByCode), topN)
	report.TopSynonyms = limit(rankCodes(rowsByCode, nameByCode), topN)

	codes := sortedKeys(rowsByCode)
	report.MultiSynonymSubstances = []wire.SubstanceSynonymCount{}
	report.SingleSynonymSubstances = []wire.SubstanceSynonymCount{}
	for _, code := range codes {
		entry := wire.SubstanceSynonymCount{
			SubstanceCode: code,
			Name:          wire.OrNotAvailable(nameByCode[code]),
			SynonymCount:  rowsByCode[code],
		}
		switch {
		case entry.SynonymCount > 1 && len(report.MultiSynonymSubstances) < topN:
			report.MultiSynonymSubstances = append(report.MultiSynonymSubstances, entry)
		case entry.SynonymCount == 1 && len(report.SingleSynonymSubstances) < topN:
			report.SingleSynonymSubstances = append(report.SingleSynonymSubstances, entry)
		}
	}

	buildTypeStats(report, refs, rowsByCode)
	buildTagStats(report, refs, store.WeightingTags())
	return report
}

func buildSynonymCounts(report *wire.InsightsReport, codesByName map[string]map[string]struct{}) {
	report.SynonymCounts = make([]wire.SynonymSubstanceCount, 0, len(codesByName))
	report.MultiSubstanceSynonyms = []wire.SynonymSubstanceCount{}
	buckets := make(map[int]int)
	for _, name := range sortedKeys(codesByName) {
		entry := wire.SynonymSubstanceCount{LocalName: name, DistinctSubstanceCount: len(codesByName[name])}
		report.SynonymCounts = append(report.SynonymCounts, entry)
		buckets[entry.DistinctSubstanceCount]++
		switch {
		case entry.DistinctSubstanceCount > 1:
			report.MultiSubstanceSynonyms = append(report.MultiSubstanceSynonyms, entry)
			report.MultiSubstanceSynonymsCount++
		case entry.DistinctSubstanceCount == 1:
			report.SingleSubstanceSynonymsCount++
		}
	}
	report.TotalSynonyms = len(report.SynonymCounts)

	ambiguous := append([]wire.SynonymSubstanceCount(nil), report.MultiSubstanceSynonyms...)
	sort.SliceStable(ambiguous, func(i, j int) bool {
		return ambiguous[i].DistinctSubstanceCount > ambiguous[j].DistinctSubstanceCount
	})
	report.AmbiguousTop10 = limit(ambiguous, topN)
	if report.AmbiguousTop10 == nil {
		report.AmbiguousTop10 = []wire.SynonymSubstanceCount{}
	}

	mapped := make([]int, 0, len(buckets))
	for m := range buckets {
		mapped = append(mapped, m)
	}
	sort.Ints(mapped)
	report.Distribution = make([]wire.DistributionBucket, 0, len(mapped))
	for _, m := range mapped {
		report.Distribution = append(report.Distribution, wire.DistributionBucket{MappedSubstances: m, SynonymCount: buckets[m]})
	}
}

func buildTypeStats(report *wire.InsightsReport, refs []substance.Reference, rowsByCode map[string]int) {
	perType := make(map[string]int)
	rowSum := make(map[string]int)
	withRows := make(map[string]int)
	for _, ref := range refs {
		if ref.TypeTitle == "" {
			continue
		}
		perType[ref.TypeTitle]++
		if n := rowsByCode[ref.SubstanceCode]; ref.SubstanceCode != "" && n > 0 {
			rowSum[ref.TypeTitle] += n
			withRows[ref.TypeTitle]++
		}
	}

	report.SubstancesPerType = make([]wire.TypeCount, 0, len(perType))
	for _, title := range sortedKeys(perType) {
		report.SubstancesPerType = append(report.SubstancesPerType, wire.TypeCount{Type: title, Count: perType[title]})
	}
	sort.SliceStable(report.SubstancesPerType, func(i, j int) bool {
		return report.SubstancesPerType[i].Count > report.SubstancesPerType[j].Count
	})

	report.AvgSynonymCountPerType = make([]wire.TypeAverage, 0, len(withRows))
	for _, title := range sortedKeys(withRows) {
		report.AvgSynonymCountPerType = append(report.AvgSynonymCountPerType, wire.TypeAverage{
			Type:                title,
			AverageSynonymCount: float64(rowSum[title]) / float64(withRows[title]),
		})
	}
}

func buildTagStats(report *wire.InsightsReport, refs []substance.Reference, tags []substance.WeightingTag) {
	titles := make(map[string]string, len(tags))
	for _, tag := range tags {
		if _, ok := titles[tag.ID]; !ok {
			titles[tag.ID] = tag.Title
		}
	}
	perTag := make(map[string]int)
	for _, ref := range refs {
		if ref.WeightingTagID != "" {
			perTag[ref.WeightingTagID]++
		}
	}

	report.WeightsPerTag = make([]wire.TagCount, 0, len(perTag))
	for _, id := range sortedKeys(perTag) {
		report.WeightsPerTag = append(report.WeightsPerTag, wire.TagCount{
			WeightingTagID: id,
			Title:          wire.OrNotAvailable(titles[id]),
			Count:          perTag[id],
		})
	}
	sort.SliceStable(report.WeightsPerTag, func(i, j int) bool {
		return report.WeightsPerTag[i].Count > report.WeightsPerTag[j].Count
	})
}

// rankCodes orders codes by count descending, then by code.
func rankCodes(counts map[string]int, names map[string]string) []wire.SubstanceSynonymCount {
	out := make([]wire.SubstanceSynonymCount, 0, len(counts))
	for _, code := range sortedKeys(counts) {
		out = append(out, wire.SubstanceSynonymCount{
			SubstanceCode: code,
			Name:          wire.OrNotAvailable(names[code]),
			SynonymCount:  counts[code],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SynonymCount > out[j].SynonymCount
	})
	return out
}

func addToSet(m map[string]map[string]struct{}, key, value string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[value] = struct{}{}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
