package postgres

import (
	"context"
	"database/sql"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

const (
	queryReferences = `SELECT reference_id, COALESCE(substance_code, ''), COALESCE(name, ''),
       COALESCE(description, ''), COALESCE(weight, ''), COALESCE(weighting_tag_id, ''), COALESCE(type_id, '')
FROM substance_references ORDER BY reference_id`
	querySynonyms       = `SELECT COALESCE(substance_code, ''), local_name FROM substance_synonyms ORDER BY id`
	queryWeightingTags  = `SELECT id, title FROM weighting_tags ORDER BY id`
	querySubstanceTypes = `SELECT id, title FROM substance_types ORDER BY id`
)

// Source loads the reference tables from PostgreSQL.
type Source struct {
	db *sql.DB
}

// NewSource returns a Source reading through db.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// Name implements substance.Source.
func (s *Source) Name() string { return "postgres" }

// Load implements substance.Source. The four tables are read concurrently.
func (s *Source) Load(ctx context.Context) (*substance.Tables, error) {
	var t substance.Tables
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.query(gctx, queryReferences, "substance_references", func(rows *sql.Rows) error {
			var r substance.Reference
			if err := rows.Scan(&r.ReferenceID, &r.SubstanceCode, &r.Name, &r.Description,
				&r.Weight, &r.WeightingTagID, &r.TypeID); err != nil {
				return err
			}
			t.References = append(t.References, r)
			return nil
		})
	})
	g.Go(func() error {
		return s.query(gctx, querySynonyms, "substance_synonyms", func(rows *sql.Rows) error {
			var syn substance.Synonym
			if err := rows.Scan(&syn.SubstanceCode, &syn.LocalName); err != nil {
				return err
			}
			t.Synonyms = append(t.Synonyms, syn)
			return nil
		})
	})
	g.Go(func() error {
		return s.query(gctx, queryWeightingTags, "weighting_tags", func(rows *sql.Rows) error {
			var wt substance.WeightingTag
			if err := rows.Scan(&wt.ID, &wt.Title); err != nil {
				return err
			}
			t.WeightingTags = append(t.WeightingTags, wt)
			return nil
		})
	})
	g.Go(func() error {
		return s.query(gctx, querySubstanceTypes, "substance_types", func(rows *sql.Rows) error {
			var st substance.SubstanceType
			if err := rows.Scan(&st.ID, &st.Title); err != nil {
				return err
			}
			t.SubstanceTypes = append(t.SubstanceTypes, st)
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Source) query(ctx context.Context, q, table string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceLoadFailed, "failed to query reference table").
			WithDetail("table=" + table)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return errors.Wrap(err, errors.ErrCodeSourceLoadFailed, "failed to scan reference row").
				WithDetail("table=" + table)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceLoadFailed, "failed to read reference table").
			WithDetail("table=" + table)
	}
	return nil
}

// ImportTables replaces the contents of the reference tables with t in a
// single transaction.
func ImportTables(ctx context.Context, db *sql.DB, t *substance.Tables) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin import transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"substance_synonyms", "substance_references", "weighting_tags", "substance_types"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear table").WithDetail("table=" + table)
		}
	}
	for _, wt := range t.WeightingTags {
		if _, err = tx.ExecContext(ctx, `INSERT INTO weighting_tags (id, title) VALUES ($1, $2)`, wt.ID, wt.Title); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert weighting tag").WithDetail("id=" + wt.ID)
		}
	}
	for _, st := range t.SubstanceTypes {
		if _, err = tx.ExecContext(ctx, `INSERT INTO substance_types (id, title) VALUES ($1, $2)`, st.ID, st.Title); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert substance type").WithDetail("id=" + st.ID)
		}
	}
	for _, r := range t.References {
		if _, err = tx.ExecContext(ctx, `INSERT INTO substance_references
    (reference_id, substance_code, name, description, weight, weighting_tag_id, type_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ReferenceID, r.SubstanceCode, r.Name, r.Description, r.Weight, r.WeightingTagID, r.TypeID); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert reference").
				WithDetail("reference_id=" + r.ReferenceID)
		}
	}
	for _, syn := range t.Synonyms {
		if _, err = tx.ExecContext(ctx, `INSERT INTO substance_synonyms (substance_code, local_name) VALUES ($1, $2)`,
			syn.SubstanceCode, syn.LocalName); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert synonym")
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit import")
	}
	return nil
}
