// Package normalize turns decoded records into business rows and accumulates
// the category and service taxonomy lookup tables of one run.
//
// A Normalizer is the run context: it owns the slug resolvers, the id
// counters and every lookup map. It is fed records strictly in input order
// from a single goroutine; nothing in it is synchronized.
package normalize

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"bizsync/internal/record"
	"bizsync/internal/slug"
	"bizsync/internal/state"
)

// Outcome classifies an observed record.
type Outcome int

const (
	// Skipped records could not be decoded or carry no data_id.
	Skipped Outcome = iota
	// Existing records were persisted earlier or already seen in this run.
	Existing
	// Added records are new to the store and queued for the business upsert.
	Added
)

func (o Outcome) String() string {
	switch o {
	case Existing:
		return "existing"
	case Added:
		return "new"
	default:
		return "skipped"
	}
}

// Category is an aggregate entry of the categories table.
type Category struct {
	ID          string
	Name        string
	URL         string
	Count       int
	Description string
	Existing    bool
	CreatedAt   time.Time
}

// ServiceCategory is an entry of the service_categories table.
type ServiceCategory struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Existing    bool
	CreatedAt   time.Time
}

// ServiceOption is an entry of the service_options table.
type ServiceOption struct {
	ID            string
	CategoryID    string
	Name          string
	Slug          string
	BusinessCount int
	Existing      bool
	CreatedAt     time.Time
}

// Link is a business_service_options row.
type Link struct {
	BusinessID string
	OptionID   string
	CreatedAt  time.Time
}

// Counters are the per-run record tallies.
type Counters struct {
	Records  int // records observed
	New      int
	Existing int
	Skipped  int
}

// Processed is the number of records carrying a data_id.
func (c Counters) Processed() int { return c.New + c.Existing }

type linkKey struct{ business, option string }

// Normalizer is the run context.
type Normalizer struct {
	snap *state.Snapshot
	now  func() time.Time

	urls    *slug.Resolver
	catURLs *slug.Resolver

	catIDs, scIDs, soIDs *idSeq

	seen map[string]struct{}

	categories    map[string]*Category
	categoryOrder []*Category

	serviceCats  map[string]*ServiceCategory
	serviceOrder []*ServiceCategory

	options     map[string]*ServiceOption
	optionOrder []*ServiceOption

	links     map[linkKey]struct{}
	linkOrder []Link

	counters Counters
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock replaces time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New returns a run context seeded from snap. A nil snap means an empty
// store.
func New(snap *state.Snapshot, opts ...Option) *Normalizer {
	if snap == nil {
		snap = state.Empty()
	}
	n := &Normalizer{
		snap:        snap,
		now:         time.Now,
		urls:        slug.NewResolver(slug.FallbackBusiness),
		catURLs:     slug.NewResolver(slug.FallbackCategory),
		catIDs:      newIDSeq("cat_"),
		scIDs:       newIDSeq("sc_"),
		soIDs:       newIDSeq("so_"),
		seen:        make(map[string]struct{}),
		categories:  make(map[string]*Category),
		serviceCats: make(map[string]*ServiceCategory),
		options:     make(map[string]*ServiceOption),
		links:       make(map[linkKey]struct{}),
	}
	for _, o := range opts {
		o(n)
	}

	n.urls.Reserve(snap.BusinessURLs...)
	for _, c := range snap.Categories {
		n.catURLs.Reserve(c.URL)
		n.catIDs.reserve(c.ID)
	}
	for _, id := range snap.ServiceCategories {
		n.scIDs.reserve(id)
	}
	for _, o := range snap.ServiceOptions {
		n.soIDs.reserve(o.ID)
	}
	return n
}

// Observe classifies one raw record and folds its taxonomy into the lookup
// tables. For Added records the decoded business, with its url assigned, is
// returned for the write queue.
//
// Category and service extraction run for every decodable record, including
// those without a data_id; links need a business id and are only recorded
// for records that have one.
func (n *Normalizer) Observe(raw json.RawMessage) (Outcome, *record.Business) {
	n.counters.Records++

	b, err := record.Decode(raw)
	if err != nil && !errors.Is(err, record.ErrMissingDataID) {
		n.counters.Skipped++
		return Skipped, nil
	}

	n.observeCategory(b.Category)
	n.observeServices(b.DataID, b.Sections)

	if err != nil {
		n.counters.Skipped++
		return Skipped, nil
	}

	_, seen := n.seen[b.DataID]
	if seen || n.snap.HasBusiness(b.DataID) {
		n.counters.Existing++
		return Existing, nil
	}
	n.seen[b.DataID] = struct{}{}

	b.URL = n.urls.Resolve(b.Title, b.ProviderID)
	n.counters.New++
	return Added, &b
}

func (n *Normalizer) observeCategory(name string) {
	if name == "" {
		return
	}
	if c, ok := n.categories[name]; ok {
		c.Count++
		return
	}

	c := &Category{
		Name:        name,
		Count:       1,
		Description: "Businesses in the " + name + " category",
		CreatedAt:   n.now(),
	}
	if prev, ok := n.snap.Categories[name]; ok {
		c.ID, c.URL, c.Existing = prev.ID, prev.URL, true
	} else {
		c.ID = n.catIDs.next()
		c.URL = n.catURLs.ResolveCategory(name)
	}
	n.categories[name] = c
	n.categoryOrder = append(n.categoryOrder, c)
}

func (n *Normalizer) observeServices(dataID string, sections []record.Section) {
	for _, sec := range sections {
		sc := n.serviceCategory(sec)
		for _, o := range sec.Options {
			opt := n.serviceOption(sc, o)
			if dataID == "" {
				continue
			}
			k := linkKey{business: dataID, option: opt.ID}
			if _, dup := n.links[k]; dup {
				continue
			}
			n.links[k] = struct{}{}
			n.linkOrder = append(n.linkOrder, Link{BusinessID: dataID, OptionID: opt.ID, CreatedAt: n.now()})
			opt.BusinessCount++
		}
	}
}

func (n *Normalizer) serviceCategory(sec record.Section) *ServiceCategory {
	if sc, ok := n.serviceCats[sec.Slug]; ok {
		return sc
	}
	sc := &ServiceCategory{
		Name:        sec.Name,
		Slug:        sec.Slug,
		Description: "Services in the " + sec.Name + " category",
		CreatedAt:   n.now(),
	}
	if id, ok := n.snap.ServiceCategories[sec.Slug]; ok {
		sc.ID, sc.Existing = id, true
	} else {
		sc.ID = n.scIDs.next()
	}
	n.serviceCats[sec.Slug] = sc
	n.serviceOrder = append(n.serviceOrder, sc)
	return sc
}

func (n *Normalizer) serviceOption(sc *ServiceCategory, o record.Option) *ServiceOption {
	if opt, ok := n.options[o.Slug]; ok {
		return opt
	}
	opt := &ServiceOption{CategoryID: sc.ID, Name: o.Name, Slug: o.Slug, CreatedAt: n.now()}
	if prev, ok := n.snap.ServiceOptions[o.Slug]; ok {
		opt.ID, opt.Existing = prev.ID, true
		if prev.CategoryID != "" {
			opt.CategoryID = prev.CategoryID
		}
	} else {
		opt.ID = n.soIDs.next()
	}
	n.options[o.Slug] = opt
	n.optionOrder = append(n.optionOrder, opt)
	return opt
}

// Counters returns the record tallies so far.
func (n *Normalizer) Counters() Counters { return n.counters }

// Categories returns the category aggregates in first-sighting order.
func (n *Normalizer) Categories() []*Category { return n.categoryOrder }

// ServiceCategories returns service categories in first-sighting order.
func (n *Normalizer) ServiceCategories() []*ServiceCategory { return n.serviceOrder }

// ServiceOptions returns service options in first-sighting order. Business
// counts reflect the links recorded so far.
func (n *Normalizer) ServiceOptions() []*ServiceOption { return n.optionOrder }

// Links returns the distinct business/option pairs in first-sighting order.
func (n *Normalizer) Links() []Link { return n.linkOrder }

// idSeq hands out prefix_N ids, skipping ids persisted by earlier runs.
type idSeq struct {
	prefix string
	n      int
	taken  map[string]struct{}
}

func newIDSeq(prefix string) *idSeq {
	return &idSeq{prefix: prefix, taken: make(map[string]struct{})}
}

func (s *idSeq) reserve(id string) {
	if id != "" {
		s.taken[id] = struct{}{}
	}
}

func (s *idSeq) next() string {
	for {
		s.n++
		id := s.prefix + strconv.Itoa(s.n)
		if _, ok := s.taken[id]; !ok {
			s.taken[id] = struct{}{}
			return id
		}
	}
}
