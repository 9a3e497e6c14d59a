package substance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// Source supplies the raw reference tables. Implementations live in the
// infrastructure layer (snapshot files, MinIO objects, PostgreSQL).
type Source interface {
	// Name identifies the source in logs and metrics ("file", "postgres", ...).
	Name() string

	// Load returns a complete copy of the tables. It is called once at start
	// and again on every reload; implementations must not cache across calls.
	Load(ctx context.Context) (*Tables, error)
}

// Load reads the tables from src and builds a Store. Failures are returned
// with ErrCodeSourceLoadFailed unless the source already classified them.
func Load(ctx context.Context, src Source, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	start := time.Now()

	tables, err := src.Load(ctx)
	if err != nil {
		if errors.GetCode(err) == errors.CodeUnknown {
			return nil, errors.Wrap(err, errors.ErrCodeSourceLoadFailed, "failed to load reference tables").
				WithDetail("source=" + src.Name())
		}
		return nil, err
	}
	if tables == nil {
		return nil, errors.New(errors.ErrCodeSourceLoadFailed, "source returned no tables").
			WithDetail("source=" + src.Name())
	}

	store, err := NewStore(*tables)
	if err != nil {
		return nil, err
	}

	st := store.Stats()
	log.Info("reference store built",
		logging.String("source", src.Name()),
		logging.Int("references", st.References),
		logging.Int("synonyms", st.Synonyms),
		logging.Int("combined_rows", st.CombinedRows),
		logging.Int("unjoined_synonyms", st.UnjoinedSynonyms),
		logging.Int("weighting_tags", st.WeightingTags),
		logging.Int("substance_types", st.SubstanceTypes),
		logging.Uint64("fingerprint", store.Fingerprint()),
		logging.Duration("elapsed", time.Since(start)),
	)
	if st.DroppedReferences > 0 || st.DroppedSynonyms > 0 {
		log.Warn("reference rows dropped during build",
			logging.Int("references", st.DroppedReferences),
			logging.Int("synonyms", st.DroppedSynonyms),
		)
	}
	if len(st.SharedCodes) > 0 {
		// Synonyms join on substance code while results dedup on reference id,
		// so each shared code's synonyms count toward every owner.
		log.Warn("substance codes shared by several references",
			logging.Int("count", len(st.SharedCodes)),
			logging.Strings("codes", st.SharedCodes),
		)
	}
	return store, nil
}

// Holder publishes the current Store to concurrent readers. Swapping installs
// a whole new Store; a Store itself is never modified.
type Holder struct {
	current atomic.Pointer[Store]
}

// NewHolder returns a Holder initialised with store, which may be nil.
func NewHolder(store *Store) *Holder {
	h := &Holder{}
	if store != nil {
		h.current.Store(store)
	}
	return h
}

// Current returns the installed Store, or nil before the first Swap.
func (h *Holder) Current() *Store {
	return h.current.Load()
}

// Swap installs store and returns the previous one.
func (h *Holder) Swap(store *Store) *Store {
	return h.current.Swap(store)
}

// Provider is implemented by anything that can hand out the current Store.
type Provider interface {
	Current() *Store
}

// Static wraps a single Store as a Provider.
type Static struct{ S *Store }

// Current returns the wrapped Store.
func (s Static) Current() *Store { return s.S }

// Reload loads a new Store from src and installs it in h. On failure the
// installed Store is left in place and the error is returned.
func Reload(ctx context.Context, src Source, h *Holder, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	store, err := Load(ctx, src, log)
	if err != nil {
		log.Error("reference reload failed, keeping current store",
			logging.String("source", src.Name()), logging.Err(err))
		return nil, err
	}
	prev := h.Swap(store)
	var prevFingerprint uint64
	if prev != nil {
		prevFingerprint = prev.Fingerprint()
	}
	log.Info("reference store swapped",
		logging.String("source", src.Name()),
		logging.Uint64("previous_fingerprint", prevFingerprint),
		logging.Uint64("fingerprint", store.Fingerprint()),
	)
	return store, nil
}
