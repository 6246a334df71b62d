package writer

import (
	"bizsync/internal/normalize"
	"bizsync/internal/record"
	"bizsync/internal/schema"
)

// Targets of the lookup tables. Existing keys are never rewritten.
var (
	CategoryTarget = Target{
		Table:   schema.Categories,
		Columns: schema.CategoryColumns,
		Key:     []string{"category_id"},
	}
	ServiceCategoryTarget = Target{
		Table:   schema.ServiceCategories,
		Columns: schema.ServiceCategoryColumns,
		Key:     []string{"category_id"},
	}
	ServiceOptionTarget = Target{
		Table:   schema.ServiceOptions,
		Columns: schema.ServiceOptionColumns,
		Key:     []string{"option_id"},
	}
	LinkTarget = Target{
		Table:   schema.BusinessServiceOptions,
		Columns: schema.LinkColumns,
		Key:     []string{"business_id", "option_id"},
	}
)

// BusinessTarget returns the businesses target for the column list found in
// the store. Rows conflicting on data_id are overwritten, except for the url
// assigned at first ingestion.
func BusinessTarget(cols []string) Target {
	return Target{
		Table:    schema.Businesses,
		Columns:  cols,
		Key:      []string{record.FieldDataID},
		Conflict: DoUpdate,
		Keep:     []string{record.FieldURL},
	}
}

// BusinessRows lays out bs in cols order. Absent fields become NULL.
func BusinessRows(cols []string, bs []*record.Business) [][]any {
	out := make([][]any, 0, len(bs))
	for _, b := range bs {
		row := make([]any, len(cols))
		for i, c := range cols {
			if v, ok := b.Value(c); ok {
				row[i] = v
			}
		}
		out = append(out, row)
	}
	return out
}

// CategoryRows returns the rows of categories not yet persisted.
func CategoryRows(cs []*normalize.Category) [][]any {
	var out [][]any
	for _, c := range cs {
		if c.Existing {
			continue
		}
		out = append(out, []any{c.ID, c.Name, c.URL, c.Count, c.Description, c.CreatedAt, c.CreatedAt})
	}
	return out
}

// ServiceCategoryRows returns the rows of service categories not yet
// persisted.
func ServiceCategoryRows(scs []*normalize.ServiceCategory) [][]any {
	var out [][]any
	for _, sc := range scs {
		if sc.Existing {
			continue
		}
		out = append(out, []any{sc.ID, sc.Name, sc.Slug, sc.Description, sc.CreatedAt})
	}
	return out
}

// ServiceOptionRows returns the rows of service options not yet persisted.
func ServiceOptionRows(opts []*normalize.ServiceOption) [][]any {
	var out [][]any
	for _, o := range opts {
		if o.Existing {
			continue
		}
		out = append(out, []any{o.ID, o.CategoryID, o.Name, o.Slug, o.BusinessCount, o.CreatedAt})
	}
	return out
}

// LinkRows returns one row per business/option pair.
func LinkRows(links []normalize.Link) [][]any {
	out := make([][]any, 0, len(links))
	for _, l := range links {
		out = append(out, []any{l.BusinessID, l.OptionID, l.CreatedAt})
	}
	return out
}
