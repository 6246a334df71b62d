package schema

import (
	"fmt"
	"strings"

	"bizsync/internal/storage"
)

// sqlType translates a portable column type to the dialect.
func sqlType(d storage.Dialect, typ string) string {
	if d != storage.SQLServer {
		return typ
	}
	switch {
	case typ == "TEXT":
		return "NVARCHAR(MAX)"
	case typ == "TIMESTAMP":
		return "DATETIME2"
	case strings.HasPrefix(typ, "VARCHAR("):
		return "N" + typ
	}
	return typ
}

// CreateTableSQL renders an idempotent CREATE TABLE statement for t.
//
// Rules:
//   - identifiers are double-quoted,
//   - a column renders as <name> <type> [NOT NULL] [UNIQUE] [DEFAULT <expr>],
//   - primary key columns are collected into one PRIMARY KEY clause,
//   - foreign keys cascade on delete.
func CreateTableSQL(d storage.Dialect, t Table) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("schema: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("schema: table %s has no columns", name)
	}

	defs := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.SQLType) == "" {
			return "", fmt.Errorf("schema: table %s: column needs name and type", name)
		}
		var sb strings.Builder
		sb.WriteString(storage.QuoteIdent(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(sqlType(d, c.SQLType))
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if c.Unique {
			sb.WriteString(" UNIQUE")
		}
		if c.Default != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(c.Default)
		}
		defs = append(defs, sb.String())
	}
	if pk := t.PrimaryKey(); len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteList(pk)))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE CASCADE",
			storage.QuoteIdent(fk.Column), storage.QuoteIdent(fk.RefTable), storage.QuoteIdent(fk.RefColumn)))
	}

	body := fmt.Sprintf("%s (\n  %s\n)", storage.QuoteIdent(name), strings.Join(defs, ",\n  "))
	if d == storage.SQLServer {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s;", name, body), nil
	}
	return "CREATE TABLE IF NOT EXISTS " + body + ";", nil
}

// IndexSQL renders the secondary indexes of t.
func IndexSQL(d storage.Dialect, t Table) []string {
	out := make([]string, 0, len(t.Indexes))
	for _, col := range t.Indexes {
		idx := fmt.Sprintf("idx_%s_%s", t.Name, col)
		on := fmt.Sprintf("%s ON %s (%s)", storage.QuoteIdent(idx), storage.QuoteIdent(t.Name), storage.QuoteIdent(col))
		if d == storage.SQLServer {
			out = append(out, fmt.Sprintf("IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s')\nCREATE INDEX %s;", idx, on))
			continue
		}
		out = append(out, "CREATE INDEX IF NOT EXISTS "+on+";")
	}
	return out
}

// ScriptSQL renders the whole reference schema: tables in dependency order
// followed by their indexes.
func ScriptSQL(d storage.Dialect) ([]string, error) {
	var stmts []string
	tables := Contract()
	for _, t := range tables {
		s, err := CreateTableSQL(d, t)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	for _, t := range tables {
		stmts = append(stmts, IndexSQL(d, t)...)
	}
	return stmts, nil
}

func quoteList(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = storage.QuoteIdent(c)
	}
	return strings.Join(q, ", ")
}
