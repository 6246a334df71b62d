// Package writer turns row sets into multi-row "insert or resolve conflict"
// statements for the dialect of the connected store.
//
// A Target names the table, its column order, the conflict key and what to do
// when a row collides with an existing key. Upsert splits the rows into
// statements no larger than StatementRows rows and never over the dialect's
// bind parameter ceiling, then executes them in order. Each statement is
// atomic on its own; there is no transaction spanning statements.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/sirupsen/logrus"

	"bizsync/internal/storage"
)

// DefaultStatementRows is the row count of one insert statement.
const DefaultStatementRows = 50

// Conflict selects the action for rows whose key already exists.
type Conflict int

const (
	// DoNothing keeps the stored row.
	DoNothing Conflict = iota
	// DoUpdate overwrites every non-key column with the incoming value.
	DoUpdate
)

func (c Conflict) String() string {
	if c == DoUpdate {
		return "update"
	}
	return "nothing"
}

// Target describes a destination table.
type Target struct {
	Table    string
	Columns  []string
	Key      []string
	Conflict Conflict
	// Keep lists columns written on insert only; DoUpdate leaves them as
	// stored.
	Keep []string
}

// Validate reports structural problems with t.
func (t Target) Validate() error {
	switch {
	case t.Table == "":
		return errors.New("writer: target table is empty")
	case len(t.Columns) == 0:
		return fmt.Errorf("writer: %s: no columns", t.Table)
	case len(t.Key) == 0:
		return fmt.Errorf("writer: %s: no conflict key", t.Table)
	}
	for _, k := range t.Key {
		if indexOf(t.Columns, k) < 0 {
			return fmt.Errorf("writer: %s: key column %q not in column list", t.Table, k)
		}
	}
	return nil
}

// updateColumns returns the columns a DoUpdate conflict rewrites.
func (t Target) updateColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if indexOf(t.Key, c) < 0 && indexOf(t.Keep, c) < 0 {
			out = append(out, c)
		}
	}
	return out
}

// Result tallies one Upsert call.
type Result struct {
	Statements int
	Rows       int   // rows sent
	Affected   int64 // rows reported by the store
}

// Writer executes upserts on one connection.
type Writer struct {
	db            storage.DB
	statementRows int
	log           logrus.FieldLogger
}

// Option configures a Writer.
type Option func(*Writer)

// WithStatementRows sets the rows per statement. Values <= 0 keep the
// default.
func WithStatementRows(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.statementRows = n
		}
	}
}

// WithLogger sets the logger used for per-statement debug lines.
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// New returns a Writer bound to db.
func New(db storage.DB, opts ...Option) *Writer {
	l := logrus.New()
	l.SetOutput(io.Discard)
	w := &Writer{db: db, statementRows: DefaultStatementRows, log: l}
	for _, o := range opts {
		o(w)
	}
	return w
}

// RowsPerStatement returns how many rows of cols columns fit in one statement
// for dialect d, capped at statementRows.
func RowsPerStatement(d storage.Dialect, cols, statementRows int) int {
	if statementRows <= 0 {
		statementRows = DefaultStatementRows
	}
	if cols <= 0 {
		return statementRows
	}
	n := d.MaxParams() / cols
	if n < 1 {
		n = 1
	}
	if n > statementRows {
		n = statementRows
	}
	return n
}

// Upsert writes rows into t. Every row must have len(t.Columns) values in
// column order; nil is written as NULL. An empty row set issues nothing.
func (w *Writer) Upsert(ctx context.Context, t Target, rows [][]any) (Result, error) {
	var res Result
	if len(rows) == 0 {
		return res, nil
	}
	if err := t.Validate(); err != nil {
		return res, err
	}
	for i, r := range rows {
		if len(r) != len(t.Columns) {
			return res, fmt.Errorf("writer: %s: row %d has %d values, want %d", t.Table, i, len(r), len(t.Columns))
		}
	}

	d := w.db.Dialect()
	per := RowsPerStatement(d, len(t.Columns), w.statementRows)
	for start := 0; start < len(rows); start += per {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+per, len(rows))

		q, args, err := Build(d, t, rows[start:end])
		if err != nil {
			return res, err
		}
		began := time.Now()
		n, err := w.db.Exec(ctx, q, args...)
		if err != nil {
			return res, fmt.Errorf("writer: %s: statement %d (%d rows): %w", t.Table, res.Statements+1, end-start, err)
		}
		res.Statements++
		res.Rows += end - start
		res.Affected += n

		w.log.WithFields(logrus.Fields{
			"table":    t.Table,
			"rows":     end - start,
			"affected": n,
			"elapsed":  time.Since(began).Truncate(time.Microsecond),
		}).Debug("statement executed")
	}
	return res, nil
}

// Build renders one statement for rows. PostgreSQL and SQLite get an
// INSERT ... ON CONFLICT; SQL Server gets a MERGE.
func Build(d storage.Dialect, t Target, rows [][]any) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, errors.New("writer: no rows")
	}
	switch d {
	case storage.Postgres:
		return buildOnConflict(sqlbuilder.PostgreSQL, t, rows)
	case storage.SQLite:
		return buildOnConflict(sqlbuilder.SQLite, t, rows)
	case storage.SQLServer:
		return buildMerge(t, rows)
	default:
		return "", nil, fmt.Errorf("writer: unsupported dialect %q", d)
	}
}

func buildOnConflict(f sqlbuilder.Flavor, t Target, rows [][]any) (string, []any, error) {
	ib := f.NewInsertBuilder()
	ib.InsertInto(storage.QuoteIdent(t.Table))
	ib.Cols(quoteAll(t.Columns)...)
	for _, r := range rows {
		ib.Values(r...)
	}
	q, args := ib.Build()

	var b strings.Builder
	b.WriteString(q)
	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(quoteAll(t.Key), ", "))
	b.WriteString(")")

	upd := t.updateColumns()
	if t.Conflict == DoUpdate && len(upd) > 0 {
		b.WriteString(" DO UPDATE SET ")
		for i, c := range upd {
			if i > 0 {
				b.WriteString(", ")
			}
			qc := storage.QuoteIdent(c)
			b.WriteString(qc + " = EXCLUDED." + qc)
		}
	} else {
		b.WriteString(" DO NOTHING")
	}
	return b.String(), args, nil
}

// buildMerge renders
//
//	MERGE INTO t WITH (HOLDLOCK) AS tgt
//	USING (VALUES (...), ...) AS src (cols)
//	ON tgt.k = src.k
//	[WHEN MATCHED THEN UPDATE SET ...]
//	WHEN NOT MATCHED THEN INSERT (cols) VALUES (src.cols);
func buildMerge(t Target, rows [][]any) (string, []any, error) {
	cols := quoteAll(t.Columns)

	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(escapeFormat(storage.QuoteIdent(t.Table)))
	b.WriteString(" WITH (HOLDLOCK) AS tgt USING (VALUES ")

	args := make([]any, 0, len(rows)*len(t.Columns))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range r {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("$?")
			args = append(args, v)
		}
		b.WriteString(")")
	}
	b.WriteString(") AS src (")
	b.WriteString(escapeFormat(strings.Join(cols, ", ")))
	b.WriteString(") ON ")
	for i, k := range t.Key {
		if i > 0 {
			b.WriteString(" AND ")
		}
		qk := escapeFormat(storage.QuoteIdent(k))
		b.WriteString("tgt." + qk + " = src." + qk)
	}

	if upd := t.updateColumns(); t.Conflict == DoUpdate && len(upd) > 0 {
		b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		for i, c := range upd {
			if i > 0 {
				b.WriteString(", ")
			}
			qc := escapeFormat(storage.QuoteIdent(c))
			b.WriteString("tgt." + qc + " = src." + qc)
		}
	}

	b.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	b.WriteString(escapeFormat(strings.Join(cols, ", ")))
	b.WriteString(") VALUES (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("src." + escapeFormat(c))
	}
	b.WriteString(");")

	q, out := sqlbuilder.Build(b.String(), args...).BuildWithFlavor(sqlbuilder.SQLServer)
	return q, out, nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = storage.QuoteIdent(n)
	}
	return out
}

// escapeFormat protects literal '$' in identifiers from sqlbuilder.Build.
func escapeFormat(s string) string { return strings.ReplaceAll(s, "$", "$$") }

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
