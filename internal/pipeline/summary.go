package pipeline

import (
	"sort"
	"time"
)

// topOptions is the number of service options listed in a Summary.
const topOptions = 10

// Counters are the record tallies of a run. Processed counts records with
// a data_id; Written counts business rows sent to the store.
type Counters struct {
	Records   int
	Processed int
	New       int
	Existing  int
	Skipped   int
	Written   int
}

// CategoryCount is a category and the records of this run carrying it.
type CategoryCount struct {
	Name  string
	URL   string
	Count int
}

// OptionCount is a service option and its linked businesses in this run.
type OptionCount struct {
	Name       string
	Slug       string
	Businesses int
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	State      State
	Counters   Counters
	Categories []CategoryCount
	TopOptions []OptionCount
	Chunks     int
	Duration   time.Duration
}

func (p *Pipeline) summarize(r *run, final State, d time.Duration) Summary {
	s := Summary{
		RunID:    r.id,
		State:    final,
		Chunks:   len(r.chunks),
		Duration: d,
	}
	s.Counters.Written = r.written
	if r.norm == nil {
		return s
	}

	c := r.norm.Counters()
	s.Counters.Records = c.Records
	s.Counters.Processed = c.Processed()
	s.Counters.New = c.New
	s.Counters.Existing = c.Existing
	s.Counters.Skipped = c.Skipped

	for _, cat := range r.norm.Categories() {
		s.Categories = append(s.Categories, CategoryCount{Name: cat.Name, URL: cat.URL, Count: cat.Count})
	}
	sort.SliceStable(s.Categories, func(i, j int) bool {
		return s.Categories[i].Count > s.Categories[j].Count
	})

	opts := make([]OptionCount, 0, len(r.norm.ServiceOptions()))
	for _, o := range r.norm.ServiceOptions() {
		opts = append(opts, OptionCount{Name: o.Name, Slug: o.Slug, Businesses: o.BusinessCount})
	}
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Businesses > opts[j].Businesses })
	if len(opts) > topOptions {
		opts = opts[:topOptions]
	}
	s.TopOptions = opts
	return s
}
