// Package pipeline runs one sync: split the input into chunks, classify
// every record against the store, write new businesses in batches and then
// sync the category and service lookup tables.
//
// A run moves through the stages
//
//	idle → connecting → schema_check → loading_existing_state → splitting →
//	processing_chunks → syncing_categories → syncing_service_tables →
//	cleaning_up → done
//
// and ends in failed from any stage. The chunk directory is removed at the
// end of every run, failed ones included.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bizsync/internal/chunk"
	"bizsync/internal/datasource"
	"bizsync/internal/metrics"
	"bizsync/internal/normalize"
	"bizsync/internal/schema"
	"bizsync/internal/state"
	"bizsync/internal/storage"
	"bizsync/internal/writer"
)

// DefaultBatchSize is the number of new businesses per write batch.
const DefaultBatchSize = 100

// State is a pipeline stage.
type State string

const (
	Idle                 State = "idle"
	Connecting           State = "connecting"
	SchemaCheck          State = "schema_check"
	LoadingExistingState State = "loading_existing_state"
	Splitting            State = "splitting"
	ProcessingChunks     State = "processing_chunks"
	SyncingCategories    State = "syncing_categories"
	SyncingServiceTables State = "syncing_service_tables"
	CleaningUp           State = "cleaning_up"
	Done                 State = "done"
	Failed               State = "failed"
)

// Opener connects to the store. The pipeline closes what it opens.
type Opener func(ctx context.Context) (storage.DB, error)

// Progress is reported after each processed chunk.
type Progress struct {
	Chunk     int // 1-based
	Chunks    int
	Records   int
	Processed int
}

// Options configures a Pipeline.
type Options struct {
	Source datasource.Source
	Open   Opener

	// TmpDir is the parent of the run-scoped chunk directory.
	TmpDir string
	// Limit stops processing once this many records with a data_id were
	// seen. Zero means no limit.
	Limit int

	BatchSize        int
	StatementRows    int
	MaxChunkBytes    int64
	DirectParseLimit int64

	// Job labels metrics; default "bizsync".
	Job string
	Log logrus.FieldLogger
	// OnChunk, when set, is called after every chunk.
	OnChunk func(Progress)

	// Now stamps created_at values; default time.Now.
	Now func() time.Time
	// Reclaim runs after each batch flush; default runtime.GC.
	Reclaim func()
}

// Pipeline executes sync runs. A Pipeline runs one sync at a time.
type Pipeline struct {
	opts Options
	log  logrus.FieldLogger

	mu    sync.Mutex
	state State
}

// New validates opts and returns an idle Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if opts.Open == nil {
		return nil, errors.New("pipeline: store opener is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.StatementRows <= 0 {
		opts.StatementRows = writer.DefaultStatementRows
	}
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = chunk.DefaultMaxChunkBytes
	}
	if opts.TmpDir == "" {
		opts.TmpDir = os.TempDir()
	}
	if opts.Job == "" {
		opts.Job = "bizsync"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reclaim == nil {
		opts.Reclaim = runtime.GC
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Pipeline{opts: opts, log: log, state: Idle}, nil
}

// State returns the current stage.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// run carries the resources of one Run.
type run struct {
	id     string
	log    logrus.FieldLogger
	dir    string
	db     storage.DB
	cols   []string
	snap   *state.Snapshot
	chunks []chunk.Chunk
	norm   *normalize.Normalizer
	w      *writer.Writer

	written int
	batches int
}

// Run executes one sync and returns its summary. The summary is filled as
// far as the run got, also on error.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	began := time.Now()
	r := &run{id: uuid.NewString()}
	r.log = p.log.WithField("run", r.id)
	r.dir = filepath.Join(p.opts.TmpDir, "run-"+r.id)

	err := p.execute(ctx, r)

	p.setState(CleaningUp)
	cleanupBegan := time.Now()
	rep := chunk.Cleanup(r.dir, r.chunks, r.log)
	metrics.RecordStep(p.opts.Job, string(CleaningUp), nil, time.Since(cleanupBegan))
	r.log.WithFields(logrus.Fields{
		"removed":     rep.Removed,
		"failed":      rep.Failed,
		"dir_removed": rep.DirRemoved,
	}).Debug("chunk cleanup")

	if r.db != nil {
		if cerr := r.db.Close(); cerr != nil {
			r.log.WithError(cerr).Warn("close store")
		}
	}

	final := Done
	if err != nil {
		final = Failed
	}
	p.setState(final)

	sum := p.summarize(r, final, time.Since(began))
	p.recordCounters(sum.Counters)
	if err != nil {
		r.log.WithError(err).Error("sync failed")
		return sum, err
	}
	r.log.WithFields(logrus.Fields{
		"records":  sum.Counters.Records,
		"new":      sum.Counters.New,
		"existing": sum.Counters.Existing,
		"skipped":  sum.Counters.Skipped,
		"written":  sum.Counters.Written,
		"elapsed":  sum.Duration.Truncate(time.Millisecond),
	}).Info("sync complete")
	return sum, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	err := p.stage(r, Connecting, func() error {
		db, err := p.opts.Open(ctx)
		if err != nil {
			return err
		}
		r.db = db
		return nil
	})
	if err != nil {
		return err
	}

	err = p.stage(r, SchemaCheck, func() error {
		res, err := schema.Check(ctx, r.db)
		if err != nil {
			return err
		}
		r.cols = res.BusinessColumns
		return nil
	})
	if err != nil {
		return err
	}

	err = p.stage(r, LoadingExistingState, func() error {
		snap, err := state.Load(ctx, r.db)
		if err != nil {
			return err
		}
		r.snap = snap
		r.log.WithFields(logrus.Fields{
			"businesses":         len(snap.DataIDs),
			"categories":         len(snap.Categories),
			"service_categories": len(snap.ServiceCategories),
			"service_options":    len(snap.ServiceOptions),
		}).Info("existing state loaded")
		return nil
	})
	if err != nil {
		return err
	}

	r.norm = normalize.New(r.snap, normalize.WithClock(p.opts.Now))
	r.w = writer.New(r.db, writer.WithStatementRows(p.opts.StatementRows), writer.WithLogger(r.log))

	if err := p.stage(r, Splitting, func() error { return p.split(ctx, r) }); err != nil {
		return err
	}
	if err := p.stage(r, ProcessingChunks, func() error { return p.process(ctx, r) }); err != nil {
		return err
	}
	if err := p.stage(r, SyncingCategories, func() error { return p.syncCategories(ctx, r) }); err != nil {
		return err
	}
	return p.stage(r, SyncingServiceTables, func() error { return p.syncServiceTables(ctx, r) })
}

// stage runs fn as stage s, recording its duration and wrapping its error
// with the stage name.
func (p *Pipeline) stage(r *run, s State, fn func() error) error {
	p.setState(s)
	began := time.Now()
	err := fn()
	elapsed := time.Since(began)
	metrics.RecordStep(p.opts.Job, string(s), err, elapsed)
	if err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	r.log.WithFields(logrus.Fields{"stage": s, "elapsed": elapsed.Truncate(time.Millisecond)}).Debug("stage complete")
	return nil
}

func (p *Pipeline) split(ctx context.Context, r *run) error {
	chunks, err := chunk.Split(ctx, p.opts.Source, chunk.Options{
		Dir:              r.dir,
		MaxChunkBytes:    p.opts.MaxChunkBytes,
		DirectParseLimit: p.opts.DirectParseLimit,
		Log:              r.log,
	})
	r.chunks = chunks
	return err
}

func (p *Pipeline) syncCategories(ctx context.Context, r *run) error {
	res, err := r.w.Upsert(ctx, writer.CategoryTarget, writer.CategoryRows(r.norm.Categories()))
	metrics.RecordBatches(p.opts.Job, schema.Categories, int64(res.Statements))
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"categories": len(r.norm.Categories()), "inserted": res.Rows}).Info("categories synced")
	return nil
}

func (p *Pipeline) syncServiceTables(ctx context.Context, r *run) error {
	steps := []struct {
		target writer.Target
		rows   [][]any
	}{
		{writer.ServiceCategoryTarget, writer.ServiceCategoryRows(r.norm.ServiceCategories())},
		{writer.ServiceOptionTarget, writer.ServiceOptionRows(r.norm.ServiceOptions())},
		{writer.LinkTarget, writer.LinkRows(r.norm.Links())},
	}
	for _, s := range steps {
		res, err := r.w.Upsert(ctx, s.target, s.rows)
		metrics.RecordBatches(p.opts.Job, s.target.Table, int64(res.Statements))
		if err != nil {
			return err
		}
		r.log.WithFields(logrus.Fields{"table": s.target.Table, "rows": res.Rows}).Info("service table synced")
	}
	return nil
}

func (p *Pipeline) recordCounters(c Counters) {
	metrics.RecordRow(p.opts.Job, "records", int64(c.Records))
	metrics.RecordRow(p.opts.Job, "new", int64(c.New))
	metrics.RecordRow(p.opts.Job, "existing", int64(c.Existing))
	metrics.RecordRow(p.opts.Job, "skipped", int64(c.Skipped))
	metrics.RecordRow(p.opts.Job, "written", int64(c.Written))
}
