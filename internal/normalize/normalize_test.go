package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"bizsync/internal/state"
)

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func observeAll(t *testing.T, n *Normalizer, recs ...string) []Outcome {
	t.Helper()
	out := make([]Outcome, len(recs))
	for i, r := range recs {
		out[i], _ = n.Observe(json.RawMessage(r))
	}
	return out
}

func TestObserve_EndToEndFixture(t *testing.T) {
	t.Parallel()

	n := New(nil, WithClock(fixedNow))
	o, b := n.Observe(json.RawMessage(`{"data_id":"b1","title":"Joe's Café","category":"Restaurant","service_option":[{"name":"Payments","slug":"payments","options":[{"name":"Cash","slug":"cash"}]}]}`))
	if o != Added || b == nil {
		t.Fatalf("Observe = %v, %v; want Added", o, b)
	}
	if b.DataID != "b1" || b.URL != "joes-cafe" {
		t.Fatalf("business = %+v", b)
	}

	cats := n.Categories()
	if len(cats) != 1 || cats[0].Name != "Restaurant" || cats[0].Count != 1 || cats[0].ID != "cat_1" || cats[0].URL != "restaurant" {
		t.Fatalf("categories = %+v", cats)
	}
	scs := n.ServiceCategories()
	if len(scs) != 1 || scs[0].Slug != "payments" || scs[0].ID != "sc_1" {
		t.Fatalf("service categories = %+v", scs)
	}
	if got := cats[0].Description; got != "Businesses in the Restaurant category" {
		t.Errorf("category description = %q", got)
	}
	if got := scs[0].Description; got != "Services in the Payments category" {
		t.Errorf("service category description = %q", got)
	}
	opts := n.ServiceOptions()
	if len(opts) != 1 || opts[0].Slug != "cash" || opts[0].ID != "so_1" || opts[0].CategoryID != "sc_1" || opts[0].BusinessCount != 1 {
		t.Fatalf("options = %+v", opts)
	}
	links := n.Links()
	if len(links) != 1 || links[0].BusinessID != "b1" || links[0].OptionID != "so_1" || !links[0].CreatedAt.Equal(fixedNow()) {
		t.Fatalf("links = %+v", links)
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	for o, want := range map[Outcome]string{Skipped: "skipped", Existing: "existing", Added: "new"} {
		if got := o.String(); got != want {
			t.Errorf("%d.String() = %q; want %q", int(o), got, want)
		}
	}
}

func TestObserve_TwoOptionsSameSection(t *testing.T) {
	t.Parallel()

	n := New(nil)
	rec := `{"data_id":"b1","service_option":[{"name":"Payments","slug":"payments","options":[{"name":"Cash","slug":"cash"},{"name":"Card","slug":"card"}]}]}`
	observeAll(t, n, rec, rec)

	if got := len(n.ServiceCategories()); got != 1 {
		t.Fatalf("service categories = %d; want 1", got)
	}
	opts := n.ServiceOptions()
	if len(opts) != 2 || opts[0].CategoryID != opts[1].CategoryID {
		t.Fatalf("options = %+v", opts)
	}
	if got := len(n.Links()); got != 2 {
		t.Fatalf("links = %d; want 2", got)
	}
	for _, o := range opts {
		if o.BusinessCount != 1 {
			t.Fatalf("option %s count = %d; want 1", o.Slug, o.BusinessCount)
		}
	}
}

func TestObserve_MissingDataIDStillExtractsTaxonomy(t *testing.T) {
	t.Parallel()

	n := New(nil)
	out := observeAll(t, n,
		`{"data_id":"b1","category":"Bar","service_option":[{"name":"Payments","slug":"payments","options":[{"name":"Cash","slug":"cash"}]}]}`,
		`{"title":"ghost","category":"Bar","service_option":[{"name":"Payments","slug":"payments","options":[{"name":"Card","slug":"card"}]}]}`,
		`{"value":{"data_id":"","category":"Cafe"}}`,
		`not json at all`,
	)
	want := []Outcome{Added, Skipped, Skipped, Skipped}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("outcome[%d] = %v; want %v", i, out[i], want[i])
		}
	}

	c := n.Counters()
	if c.Records != 4 || c.New != 1 || c.Skipped != 3 || c.Processed() != 1 {
		t.Fatalf("counters = %+v", c)
	}
	cats := n.Categories()
	if len(cats) != 2 || cats[0].Name != "Bar" || cats[0].Count != 2 || cats[1].Name != "Cafe" {
		t.Fatalf("categories = %+v", cats)
	}
	if got := len(n.ServiceOptions()); got != 2 {
		t.Fatalf("options = %d; want 2", got)
	}
	if got := len(n.Links()); got != 1 {
		t.Fatalf("links = %d; want 1 (no business id for the ghost)", got)
	}
}

func TestObserve_ExistingAndDuplicates(t *testing.T) {
	t.Parallel()

	snap := state.Empty()
	snap.DataIDs["old"] = struct{}{}
	snap.BusinessURLs = []string{"joes-cafe"}

	n := New(snap)
	out := observeAll(t, n,
		`{"data_id":"old","title":"Old","category":"Bar"}`,
		`{"data_id":"b1","title":"Joe's Café"}`,
		`{"data_id":"b1","title":"Joe's Café again"}`,
	)
	if out[0] != Existing || out[1] != Added || out[2] != Existing {
		t.Fatalf("outcomes = %v", out)
	}
	if n.Categories()[0].Count != 1 {
		t.Fatalf("existing record must still count toward its category")
	}

	n2 := New(snap)
	_, b := n2.Observe(json.RawMessage(`{"data_id":"b2","title":"Joe's Café","provider_id":"P/77"}`))
	if b.URL != "joes-cafe-p77" {
		t.Fatalf("url = %q; want joes-cafe-p77", b.URL)
	}
}

func TestNew_ReusesSnapshotIDs(t *testing.T) {
	t.Parallel()

	snap := state.Empty()
	snap.Categories["Restaurant"] = state.Category{ID: "cat_1", URL: "restaurant"}
	snap.Categories["Old"] = state.Category{ID: "cat_2", URL: "bar"}
	snap.ServiceCategories["payments"] = "sc_1"
	snap.ServiceOptions["cash"] = state.ServiceOption{ID: "so_1", CategoryID: "sc_1"}

	n := New(snap)
	observeAll(t, n,
		`{"data_id":"b1","category":"Restaurant","service_option":[{"name":"Payments","slug":"payments","options":[{"name":"Cash","slug":"cash"},{"name":"Card","slug":"card"}]}]}`,
		`{"data_id":"b2","category":"Bar","service_option":[{"name":"Amenities","slug":"amenities","options":[{"name":"Wi-Fi"}]}]}`,
	)

	cats := n.Categories()
	if cats[0].ID != "cat_1" || cats[0].URL != "restaurant" || !cats[0].Existing {
		t.Fatalf("restaurant = %+v", cats[0])
	}
	if cats[1].ID != "cat_3" || cats[1].URL != "bar-2" || cats[1].Existing {
		t.Fatalf("bar = %+v; want fresh id skipping cat_1/cat_2 and url avoiding persisted bar", cats[1])
	}

	scs := n.ServiceCategories()
	if scs[0].ID != "sc_1" || scs[1].ID != "sc_2" {
		t.Fatalf("service categories = %+v", scs)
	}
	opts := n.ServiceOptions()
	if opts[0].ID != "so_1" || opts[1].ID != "so_2" || opts[2].ID != "so_3" || opts[2].Slug != "wi-fi" {
		t.Fatalf("options = %+v", opts)
	}
}

func TestObserve_MalformedSectionOptions(t *testing.T) {
	t.Parallel()

	n := New(nil)
	o, b := n.Observe(json.RawMessage(`{"data_id":"b1","category":"Spa","service_option":[{"name":"Payments","slug":"payments","options":"cash"}]}`))
	if o != Added || b == nil {
		t.Fatalf("outcome = %v", o)
	}
	if len(n.Categories()) != 1 || len(n.ServiceOptions()) != 0 || len(n.Links()) != 0 {
		t.Fatalf("unexpected taxonomy: cats=%d opts=%d links=%d", len(n.Categories()), len(n.ServiceOptions()), len(n.Links()))
	}
}

func TestIDSeq(t *testing.T) {
	t.Parallel()

	s := newIDSeq("so_")
	s.reserve("so_2")
	got := []string{s.next(), s.next(), s.next()}
	want := []string{"so_1", "so_3", "so_4"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v; want %v", got, want)
		}
	}
}
