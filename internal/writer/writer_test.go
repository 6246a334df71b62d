package writer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bizsync/internal/normalize"
	"bizsync/internal/record"
	"bizsync/internal/schema"
	"bizsync/internal/schema/schematest"
	"bizsync/internal/storage"
)

// recDB records every statement instead of executing it.
type recDB struct {
	dialect storage.Dialect
	queries []string
	args    [][]any
	failAt  int // 1-based statement that fails; 0 never
}

func (d *recDB) Exec(_ context.Context, q string, args ...any) (int64, error) {
	d.queries = append(d.queries, q)
	d.args = append(d.args, args)
	if d.failAt == len(d.queries) {
		return 0, errors.New("boom")
	}
	return 1, nil
}

func (d *recDB) Query(context.Context, string, ...any) (storage.Rows, error) {
	return nil, errors.New("not supported")
}
func (d *recDB) Dialect() storage.Dialect { return d.dialect }
func (d *recDB) Close() error             { return nil }

func rowsOf(n, cols int) [][]any {
	out := make([][]any, n)
	for i := range out {
		r := make([]any, cols)
		for j := range r {
			r[j] = i*cols + j
		}
		out[i] = r
	}
	return out
}

func TestRowsPerStatement(t *testing.T) {
	t.Parallel()

	cases := []struct {
		d    storage.Dialect
		cols int
		rows int
		want int
	}{
		{storage.Postgres, 66, 50, 50},
		{storage.SQLServer, 66, 50, 30},
		{storage.SQLServer, 3, 50, 50},
		{storage.SQLite, 7, 0, DefaultStatementRows},
		{storage.SQLServer, 5000, 50, 1},
	}
	for _, c := range cases {
		if got := RowsPerStatement(c.d, c.cols, c.rows); got != c.want {
			t.Errorf("RowsPerStatement(%s, %d, %d) = %d; want %d", c.d, c.cols, c.rows, got, c.want)
		}
	}
}

func TestUpsert_SplitsStatements(t *testing.T) {
	t.Parallel()

	db := &recDB{dialect: storage.Postgres}
	w := New(db, WithStatementRows(4))
	res, err := w.Upsert(context.Background(), LinkTarget, rowsOf(10, 3))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.Statements != 3 || res.Rows != 10 || res.Affected != 3 {
		t.Fatalf("result = %+v", res)
	}
	if got := len(db.args[2]); got != 2*3 {
		t.Fatalf("last statement args = %d; want 6", got)
	}
}

func TestUpsert_EmptyIssuesNothing(t *testing.T) {
	t.Parallel()

	db := &recDB{dialect: storage.SQLite}
	res, err := New(db).Upsert(context.Background(), LinkTarget, nil)
	if err != nil || res.Statements != 0 || len(db.queries) != 0 {
		t.Fatalf("Upsert(nil) = %+v, %v; queries=%d", res, err, len(db.queries))
	}
}

func TestUpsert_Errors(t *testing.T) {
	t.Parallel()

	db := &recDB{dialect: storage.SQLite, failAt: 2}
	res, err := New(db, WithStatementRows(1)).Upsert(context.Background(), LinkTarget, rowsOf(3, 3))
	if err == nil || !strings.Contains(err.Error(), "statement 2") {
		t.Fatalf("err = %v; want statement 2 failure", err)
	}
	if res.Statements != 1 || len(db.queries) != 2 {
		t.Fatalf("result = %+v after %d queries; want abort on failure", res, len(db.queries))
	}

	if _, err := New(db).Upsert(context.Background(), LinkTarget, [][]any{{"a"}}); err == nil {
		t.Fatal("want width mismatch error")
	}
	bad := Target{Table: "t", Columns: []string{"a"}, Key: []string{"b"}}
	if _, err := New(db).Upsert(context.Background(), bad, [][]any{{1}}); err == nil {
		t.Fatal("want key validation error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(&recDB{dialect: storage.SQLite}).Upsert(ctx, LinkTarget, rowsOf(1, 3)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
}

func TestBuild_OnConflict(t *testing.T) {
	t.Parallel()

	biz := BusinessTarget([]string{"data_id", "title", "url"})
	q, args, err := Build(storage.Postgres, biz, [][]any{{"b1", "Joe", "joe"}, {"b2", nil, "x"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`INSERT INTO "businesses"`,
		`("data_id", "title", "url")`,
		"$6",
		`ON CONFLICT ("data_id") DO UPDATE SET "title" = EXCLUDED."title"`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(q, `EXCLUDED."url"`) {
		t.Errorf("url must not be updated on conflict:\n%s", q)
	}
	if len(args) != 6 || args[4] != nil {
		t.Fatalf("args = %v", args)
	}

	q, _, err = Build(storage.SQLite, LinkTarget, rowsOf(2, 3))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(q, `ON CONFLICT ("business_id", "option_id") DO NOTHING`) || strings.Contains(q, "$") {
		t.Fatalf("sqlite query:\n%s", q)
	}

	keysOnly := Target{Table: "t", Columns: []string{"k"}, Key: []string{"k"}, Conflict: DoUpdate}
	q, _, _ = Build(storage.Postgres, keysOnly, [][]any{{1}})
	if !strings.HasSuffix(q, "DO NOTHING") {
		t.Fatalf("all-key update should degrade to DO NOTHING:\n%s", q)
	}

	if _, _, err := Build("oracle", LinkTarget, rowsOf(1, 3)); err == nil {
		t.Fatal("want unsupported dialect error")
	}
}

func TestBuild_Merge(t *testing.T) {
	t.Parallel()

	q, args, err := Build(storage.SQLServer, BusinessTarget([]string{"data_id", "title"}), [][]any{{"b1", "A"}, {"b2", "B"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`MERGE INTO "businesses" WITH (HOLDLOCK) AS tgt`,
		"USING (VALUES (@p1, @p2), (@p3, @p4)) AS src",
		`ON tgt."data_id" = src."data_id"`,
		`WHEN MATCHED THEN UPDATE SET tgt."title" = src."title"`,
		`WHEN NOT MATCHED THEN INSERT ("data_id", "title") VALUES (src."data_id", src."title");`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("merge missing %q:\n%s", want, q)
		}
	}
	if len(args) != 4 || args[2] != "b2" {
		t.Fatalf("args = %v", args)
	}

	q, _, _ = Build(storage.SQLServer, LinkTarget, rowsOf(1, 3))
	if strings.Contains(q, "WHEN MATCHED") {
		t.Fatalf("do-nothing merge must not update:\n%s", q)
	}
}

func TestRows_Layout(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &record.Business{DataID: "b1", URL: "joes-cafe", Fields: map[string]string{"title": "Joe's", "data_id": "b1"}}
	got := BusinessRows([]string{"data_id", "title", "rating", "url"}, []*record.Business{b})
	if len(got) != 1 || got[0][0] != "b1" || got[0][1] != "Joe's" || got[0][2] != nil || got[0][3] != "joes-cafe" {
		t.Fatalf("business row = %v", got)
	}

	cats := CategoryRows([]*normalize.Category{
		{ID: "cat_1", Name: "Old", Existing: true},
		{ID: "cat_2", Name: "Bar", URL: "bar", Count: 3, Description: "Businesses in the Bar category", CreatedAt: now},
	})
	if len(cats) != 1 || cats[0][0] != "cat_2" || cats[0][3] != 3 || len(cats[0]) != len(schema.CategoryColumns) {
		t.Fatalf("category rows = %v", cats)
	}
	if cats[0][4] != "Businesses in the Bar category" {
		t.Fatalf("category description = %v", cats[0][4])
	}
	scs := ServiceCategoryRows([]*normalize.ServiceCategory{{ID: "sc_1", Name: "Payments", Slug: "payments", Description: "Services in the Payments category", CreatedAt: now}})
	if len(scs) != 1 || len(scs[0]) != len(schema.ServiceCategoryColumns) || scs[0][3] != "Services in the Payments category" {
		t.Fatalf("service category rows = %v", scs)
	}
	if n := len(ServiceOptionRows([]*normalize.ServiceOption{{ID: "so_1", Existing: true}})); n != 0 {
		t.Fatalf("existing option rows = %d", n)
	}
}

func TestUpsert_SQLite(t *testing.T) {
	t.Parallel()

	db, _ := schematest.NewDB(t)
	w := New(db, WithStatementRows(2))
	ctx := context.Background()
	now := time.Now().UTC()

	cols := []string{"data_id", "title", "url"}
	bs := []*record.Business{
		{DataID: "b1", URL: "a", Fields: map[string]string{"title": "A"}},
		{DataID: "b2", URL: "b", Fields: map[string]string{"title": "B"}},
		{DataID: "b3", URL: "c"},
	}
	if _, err := w.Upsert(ctx, BusinessTarget(cols), BusinessRows(cols, bs)); err != nil {
		t.Fatalf("upsert businesses: %v", err)
	}
	bs[0].Fields["title"] = "A2"
	bs[0].URL = "a-renamed"
	if _, err := w.Upsert(ctx, BusinessTarget(cols), BusinessRows(cols, bs[:1])); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if n := schematest.Count(t, db, schema.Businesses); n != 3 {
		t.Fatalf("businesses = %d; want 3", n)
	}
	if got := schematest.Strings(t, db, `SELECT title FROM businesses WHERE data_id = ?`, "b1"); len(got) != 1 || got[0] != "A2" {
		t.Fatalf("title = %v; want A2", got)
	}
	if got := schematest.Strings(t, db, `SELECT url FROM businesses WHERE data_id = ?`, "b1"); len(got) != 1 || got[0] != "a" {
		t.Fatalf("url = %v; want a", got)
	}

	sc := []*normalize.ServiceCategory{{ID: "sc_1", Name: "Payments", Slug: "payments", CreatedAt: now}}
	opts := []*normalize.ServiceOption{{ID: "so_1", CategoryID: "sc_1", Name: "Cash", Slug: "cash", BusinessCount: 1, CreatedAt: now}}
	links := []normalize.Link{{BusinessID: "b1", OptionID: "so_1", CreatedAt: now}}
	for i := 0; i < 2; i++ {
		if _, err := w.Upsert(ctx, ServiceCategoryTarget, ServiceCategoryRows(sc)); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Upsert(ctx, ServiceOptionTarget, ServiceOptionRows(opts)); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Upsert(ctx, LinkTarget, LinkRows(links)); err != nil {
			t.Fatal(err)
		}
	}
	if n := schematest.Count(t, db, schema.BusinessServiceOptions); n != 1 {
		t.Fatalf("links = %d; want 1", n)
	}
	if n := schematest.Int(t, db, `SELECT business_count FROM service_options WHERE option_id = 'so_1'`); n != 1 {
		t.Fatalf("business_count = %d; want 1", n)
	}
}
