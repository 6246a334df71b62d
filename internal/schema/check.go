package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizsync/internal/storage"
)

var (
	// ErrMissingTables is returned by Check when required relations are
	// absent.
	ErrMissingTables = errors.New("schema: missing required tables")
	// ErrMissingColumns is returned when businesses lacks data_id or url.
	ErrMissingColumns = errors.New("schema: businesses lacks required columns")
)

// Result is what the pipeline learns from the schema check.
type Result struct {
	// Tables present in the store.
	Tables []string
	// BusinessColumns is the column list business rows are written with,
	// in ordinal order.
	BusinessColumns []string
}

// Check verifies the required tables exist and discovers the business
// column list.
func Check(ctx context.Context, db storage.DB) (Result, error) {
	tables, err := ListTables(ctx, db)
	if err != nil {
		return Result{}, err
	}
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[strings.ToLower(t)] = true
	}
	var missing []string
	for _, r := range Required {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return Result{Tables: tables}, fmt.Errorf("%w: %s", ErrMissingTables, strings.Join(missing, ", "))
	}

	cols, err := Columns(ctx, db, Businesses)
	if err != nil {
		return Result{}, err
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	var lacking []string
	for _, c := range []string{"data_id", "url"} {
		if !have[c] {
			lacking = append(lacking, c)
		}
	}
	if len(lacking) > 0 {
		return Result{Tables: tables}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(lacking, ", "))
	}
	return Result{Tables: tables, BusinessColumns: cols}, nil
}

// ListTables returns the base tables visible in the current schema.
func ListTables(ctx context.Context, db storage.DB) ([]string, error) {
	var q string
	switch db.Dialect() {
	case storage.Postgres:
		q = `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`
	case storage.SQLServer:
		q = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
	default:
		q = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	}
	out, err := queryStrings(ctx, db, q)
	if err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}
	return out, nil
}

// Columns returns the column names of table in ordinal order.
func Columns(ctx context.Context, db storage.DB, table string) ([]string, error) {
	var q string
	switch db.Dialect() {
	case storage.Postgres:
		q = `SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`
	case storage.SQLServer:
		q = `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1 ORDER BY ORDINAL_POSITION`
	default:
		q = `SELECT name FROM pragma_table_info(?) ORDER BY cid`
	}
	out, err := queryStrings(ctx, db, q, table)
	if err != nil {
		return nil, fmt.Errorf("schema: columns of %s: %w", table, err)
	}
	return out, nil
}

// TableStat is one line of the check report.
type TableStat struct {
	Name    string
	Present bool
	Rows    int64
}

// Inspect reports presence and row counts of the required tables.
func Inspect(ctx context.Context, db storage.DB) ([]TableStat, error) {
	tables, err := ListTables(ctx, db)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[strings.ToLower(t)] = true
	}

	out := make([]TableStat, 0, len(Required))
	for _, name := range Required {
		st := TableStat{Name: name, Present: present[name]}
		if st.Present {
			rows, err := db.Query(ctx, "SELECT COUNT(*) FROM "+storage.QuoteIdent(name))
			if err != nil {
				return nil, fmt.Errorf("schema: count %s: %w", name, err)
			}
			if rows.Next() {
				if err := rows.Scan(&st.Rows); err != nil {
					rows.Close()
					return nil, fmt.Errorf("schema: count %s: %w", name, err)
				}
			}
			err = rows.Err()
			rows.Close()
			if err != nil {
				return nil, fmt.Errorf("schema: count %s: %w", name, err)
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func queryStrings(ctx context.Context, db storage.DB, q string, args ...any) ([]string, error) {
	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
