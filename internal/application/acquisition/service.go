// Package acquisition looks up external identifiers (CAS number, synonyms,
// PubChem CID) for substance names and hands the results to the archive and
// the message bus.
package acquisition

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// DefaultConcurrency bounds parallel lookups when none is configured.
const DefaultConcurrency = 4

// Lookup outcomes reported to the Observer.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Compound is what the external database knows about one name.
type Compound struct {
	CID      int64
	Synonyms []string
}

// Identifier is the acquisition result for one substance name.
type Identifier struct {
	Substance string   `json:"substance"`
	Found     bool     `json:"found"`
	CASNumber string   `json:"cas_number,omitempty"`
	Synonyms  []string `json:"synonyms,omitempty"`
	CID       int64    `json:"pubchem_cid,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Batch is the result of one Acquire call.
type Batch struct {
	ID          string       `json:"batch_id"`
	Identifiers []Identifier `json:"identifiers"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	ArchiveKey  string       `json:"archive_key,omitempty"`
}

// Found counts the identifiers that resolved.
func (b *Batch) Found() int {
	n := 0
	for _, id := range b.Identifiers {
		if id.Found {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Ports
// ─────────────────────────────────────────────────────────────────────────────

// CompoundLookup resolves a substance name in an external compound database.
// A name the database does not know yields an error for which
// errors.IsNotFound is true.
type CompoundLookup interface {
	Lookup(ctx context.Context, name string) (*Compound, error)
}

// Archive stores rendered CSV batches and returns the object key.
type Archive interface {
	ArchiveCSV(ctx context.Context, key string, data []byte) error
}

// Publisher announces acquired identifiers.
type Publisher interface {
	PublishIdentifiers(ctx context.Context, batchID string, ids []Identifier) error
}

// Observer receives per-lookup telemetry.
type Observer interface {
	ObserveAcquisition(outcome string, elapsed time.Duration)
}

// Service runs acquisition batches.
type Service interface {
	Acquire(ctx context.Context, names []string) (*Batch, error)
}

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	Concurrency int
}

type serviceImpl struct {
	lookup    CompoundLookup
	archive   Archive
	publisher Publisher
	observer  Observer
	cfg       ServiceConfig
	logger    logging.Logger
	now       func() time.Time
}

// NewService creates an acquisition service. archive, publisher and observer
// are optional.
func NewService(lookup CompoundLookup, archive Archive, publisher Publisher, observer Observer,
	cfg ServiceConfig, logger logging.Logger) Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		lookup:    lookup,
		archive:   archive,
		publisher: publisher,
		observer:  observer,
		cfg:       cfg,
		logger:    logger.Named("acquisition"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Acquire looks every non-blank name up, at most Concurrency at a time. A name
// that fails or is unknown yields an Identifier with Found=false; only
// cancellation of ctx fails the batch. Results keep the input order.
func (s *serviceImpl) Acquire(ctx context.Context, names []string) (*Batch, error) {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "no substance names given")
	}

	batch := &Batch{
		ID:          uuid.NewString(),
		Identifiers: make([]Identifier, len(cleaned)),
		StartedAt:   s.now(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, name := range cleaned {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch.Identifiers[i] = s.lookupOne(gctx, name)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "acquisition cancelled").
			WithDetail("batch_id=" + batch.ID)
	}
	batch.CompletedAt = s.now()

	if s.archive != nil {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, batch.Identifiers); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to render acquisition csv")
		}
		key := ArchiveKey(batch.StartedAt)
		if err := s.archive.ArchiveCSV(ctx, key, buf.Bytes()); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to archive acquisition batch").
				WithDetail("key=" + key)
		}
		batch.ArchiveKey = key
	}
	if s.publisher != nil {
		if err := s.publisher.PublishIdentifiers(ctx, batch.ID, batch.Identifiers); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to publish acquired identifiers").
				WithDetail("batch_id=" + batch.ID)
		}
	}

	s.logger.Info("acquisition batch completed",
		logging.String("batch_id", batch.ID),
		logging.Int("names", len(cleaned)),
		logging.Int("found", batch.Found()),
		logging.String("archive_key", batch.ArchiveKey),
		logging.Duration("elapsed", batch.CompletedAt.Sub(batch.StartedAt)),
	)
	return batch, nil
}

func (s *serviceImpl) lookupOne(ctx context.Context, name string) Identifier {
	start := time.Now()
	id := Identifier{Substance: name}

	compound, err := s.lookup.Lookup(ctx, name)
	outcome := OutcomeFound
	switch {
	case err != nil && errors.IsNotFound(err):
		outcome = OutcomeNotFound
	case err != nil:
		outcome = OutcomeError
		id.Error = err.Error()
		if ctx.Err() == nil {
			s.logger.Warn("compound lookup failed", logging.String("substance", name), logging.Err(err))
		}
	case compound == nil:
		outcome = OutcomeNotFound
	default:
		id.Found = true
		id.CID = compound.CID
		id.Synonyms = compound.Synonyms
		id.CASNumber = ExtractCAS(compound.Synonyms)
	}
	if s.observer != nil {
		s.observer.ObserveAcquisition(outcome, time.Since(start))
	}
	return id
}

// ArchiveKey is the object key of a batch started at t.
func ArchiveKey(t time.Time) string {
	return "acquisition/" + t.UTC().Format("20060102T150405Z") + ".csv"
}

// ExtractCAS returns the first synonym shaped like a CAS registry number:
// exactly two hyphens and only digits otherwise. It returns "" when none is.
func ExtractCAS(synonyms []string) string {
	for _, s := range synonyms {
		if strings.Count(s, "-") != 2 {
			continue
		}
		digits := strings.ReplaceAll(s, "-", "")
		if digits == "" {
			continue
		}
		if strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			return s
		}
	}
	return ""
}
