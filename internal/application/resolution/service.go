// Package resolution resolves free-text queries to canonical substances. An
// exact stage (code, name, synonym) runs first; only when it finds nothing
// does the fuzzy stage search the name and synonym pools.
package resolution

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

var tracer = otel.Tracer("github.com/turtacn/substance-resolver/resolution")

// Service is the resolution entry point.
type Service interface {
	// Resolve returns the ranked matches for query. A query that matches
	// nothing, including an empty one, yields a Resolution without matches.
	Resolve(ctx context.Context, query string) (*Resolution, error)

	// GroupSynonyms returns every synonym of the references named term.
	GroupSynonyms(ctx context.Context, term string) (*SynonymGroups, error)
}

// Observer receives per-call telemetry.
type Observer interface {
	ObserveResolution(outcome string, elapsed time.Duration)
	ObserveSynonymLookup(found bool, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveResolution(string, time.Duration)   {}
func (nopObserver) ObserveSynonymLookup(bool, time.Duration) {}

// ServiceConfig tunes both stages. Zero values select the defaults, except
// MinFuzzyScore where 0 keeps every fuzzy hit.
type ServiceConfig struct {
	Similarity       Similarity
	FuzzyLimit       int
	MaxFuzzyResults  int
	SynonymPassLimit int
	MinFuzzyScore    int
}

// DefaultServiceConfig returns the stock tuning.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Similarity:       WeightedRatio{},
		FuzzyLimit:       DefaultFuzzyLimit,
		MaxFuzzyResults:  DefaultMaxFuzzyResults,
		SynonymPassLimit: DefaultSynonymPassLimit,
		MinFuzzyScore:    DefaultMinFuzzyScore,
	}
}

// ServiceConfigFrom builds a ServiceConfig from the resolution settings.
func ServiceConfigFrom(c config.ResolutionConfig) (ServiceConfig, error) {
	sim, err := NewSimilarity(c.Algorithm)
	if err != nil {
		return ServiceConfig{}, errors.Wrap(err, errors.ErrCodeValidation, "invalid resolution.algorithm")
	}
	return ServiceConfig{
		Similarity:       sim,
		FuzzyLimit:       c.FuzzyLimit,
		MaxFuzzyResults:  c.MaxFuzzyResults,
		SynonymPassLimit: c.SynonymPassLimit,
		MinFuzzyScore:    c.MinFuzzyScore,
	}, nil
}

type serviceImpl struct {
	provider substance.Provider
	exact    ExactStage
	fuzzy    FuzzyStage
	logger   logging.Logger
	observer Observer
}

// NewService creates a resolution service reading the store from provider.
// logger and observer may be nil.
func NewService(provider substance.Provider, cfg ServiceConfig, logger logging.Logger, observer Observer) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &serviceImpl{
		provider: provider,
		exact:    ExactStage{SynonymPassLimit: cfg.SynonymPassLimit},
		fuzzy: FuzzyStage{
			Similarity: cfg.Similarity,
			Limit:      cfg.FuzzyLimit,
			MaxResults: cfg.MaxFuzzyResults,
			MinScore:   cfg.MinFuzzyScore,
		},
		logger:   logger.Named("resolution"),
		observer: observer,
	}
}

func (s *serviceImpl) store() (*substance.Store, error) {
	if s.provider == nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "reference store is not loaded")
	}
	store := s.provider.Current()
	if store == nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "reference store is not loaded")
	}
	return store, nil
}

func (s *serviceImpl) Resolve(ctx context.Context, query string) (*Resolution, error) {
	_, span := tracer.Start(ctx, "resolution.Resolve")
	defer span.End()
	start := time.Now()

	store, err := s.store()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	q := substance.NormalizeText(query)
	res := &Resolution{Query: q}
	stage := "none"
	if q != "" {
		candidates, ok := s.exact.Run(store, q)
		stage = "exact"
		if !ok {
			candidates = s.fuzzy.Run(store, q)
			stage = "fuzzy"
		}
		res.Matches = assemble(store, candidates)
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("resolution.stage", stage),
		attribute.String("resolution.outcome", string(res.Outcome())),
		attribute.Int("resolution.matches", len(res.Matches)),
	)
	s.observer.ObserveResolution(string(res.Outcome()), elapsed)
	s.logger.Debug("query resolved",
		logging.String("query", q),
		logging.String("stage", stage),
		logging.String("outcome", string(res.Outcome())),
		logging.Int("matches", len(res.Matches)),
		logging.Duration("elapsed", elapsed),
	)
	return res, nil
}

func (s *serviceImpl) GroupSynonyms(ctx context.Context, term string) (*SynonymGroups, error) {
	_, span := tracer.Start(ctx, "resolution.GroupSynonyms")
	defer span.End()
	start := time.Now()

	store, err := s.store()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	groups := groupSynonyms(store, term)
	span.SetAttributes(
		attribute.Bool("synonyms.found", groups.Found),
		attribute.Int("synonyms.groups", len(groups.Groups)),
	)
	s.observer.ObserveSynonymLookup(groups.Found, time.Since(start))
	return groups, nil
}
