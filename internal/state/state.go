// Package state loads the rows already persisted by earlier runs so a run
// can tell new records from existing ones and reuse assigned ids and urls.
//
// The snapshot is taken once, after the schema check and before any record
// is processed, and is never mutated afterwards: facts created during the
// run are tracked by the normalizer, not written back here.
package state

import (
	"context"
	"fmt"

	"bizsync/internal/storage"
)

// Category is an existing categories row.
type Category struct {
	ID  string
	URL string
}

// ServiceOption is an existing service_options row.
type ServiceOption struct {
	ID         string
	CategoryID string
}

// Snapshot is the existing state of the store at the start of a run.
type Snapshot struct {
	// DataIDs of persisted businesses.
	DataIDs map[string]struct{}
	// BusinessURLs already taken by persisted businesses.
	BusinessURLs []string
	// Categories keyed by name.
	Categories map[string]Category
	// ServiceCategories keyed by slug, value is category_id.
	ServiceCategories map[string]string
	// ServiceOptions keyed by slug.
	ServiceOptions map[string]ServiceOption
}

// Empty returns a snapshot with no rows.
func Empty() *Snapshot {
	return &Snapshot{
		DataIDs:           map[string]struct{}{},
		Categories:        map[string]Category{},
		ServiceCategories: map[string]string{},
		ServiceOptions:    map[string]ServiceOption{},
	}
}

// HasBusiness reports whether dataID is persisted.
func (s *Snapshot) HasBusiness(dataID string) bool {
	_, ok := s.DataIDs[dataID]
	return ok
}

// Load reads the snapshot from db. Empty tables give empty sets; any query
// failure is returned.
func Load(ctx context.Context, db storage.DB) (*Snapshot, error) {
	s := Empty()

	err := each(ctx, db, 2, `SELECT data_id, COALESCE(url, '') FROM businesses`, func(v []string) {
		s.DataIDs[v[0]] = struct{}{}
		if v[1] != "" {
			s.BusinessURLs = append(s.BusinessURLs, v[1])
		}
	})
	if err != nil {
		return nil, fmt.Errorf("state: businesses: %w", err)
	}

	err = each(ctx, db, 3, `SELECT category_id, name, url FROM categories`, func(v []string) {
		s.Categories[v[1]] = Category{ID: v[0], URL: v[2]}
	})
	if err != nil {
		return nil, fmt.Errorf("state: categories: %w", err)
	}

	err = each(ctx, db, 2, `SELECT category_id, slug FROM service_categories`, func(v []string) {
		s.ServiceCategories[v[1]] = v[0]
	})
	if err != nil {
		return nil, fmt.Errorf("state: service_categories: %w", err)
	}

	err = each(ctx, db, 3, `SELECT option_id, category_id, slug FROM service_options`, func(v []string) {
		if _, dup := s.ServiceOptions[v[2]]; !dup {
			s.ServiceOptions[v[2]] = ServiceOption{ID: v[0], CategoryID: v[1]}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("state: service_options: %w", err)
	}
	return s, nil
}

// each scans every row of q as n text columns and hands them to fn.
func each(ctx context.Context, db storage.DB, n int, q string, fn func([]string)) error {
	rows, err := db.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	vals := make([]string, n)
	dest := make([]any, n)
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		fn(vals)
	}
	return rows.Err()
}
