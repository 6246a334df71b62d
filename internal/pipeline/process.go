package pipeline

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"bizsync/internal/chunk"
	"bizsync/internal/metrics"
	"bizsync/internal/normalize"
	"bizsync/internal/record"
	"bizsync/internal/schema"
	"bizsync/internal/writer"
)

// memoryLogEvery is the batch interval of heap usage log lines.
const memoryLogEvery = 10

// batcher queues new businesses and flushes them through the writer.
type batcher struct {
	p       *Pipeline
	r       *run
	target  writer.Target
	pending []*record.Business
	began   time.Time
}

func (b *batcher) add(ctx context.Context, biz *record.Business) error {
	b.pending = append(b.pending, biz)
	if len(b.pending) >= b.p.opts.BatchSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	res, err := b.r.w.Upsert(ctx, b.target, writer.BusinessRows(b.target.Columns, b.pending))
	metrics.RecordBatches(b.p.opts.Job, schema.Businesses, int64(res.Statements))
	b.r.written += res.Rows
	if err != nil {
		return err
	}
	b.r.batches++
	b.r.log.Infof("batch=%d rows=%d total=%d elapsed=%s",
		b.r.batches, len(b.pending), b.r.written, time.Since(b.began).Truncate(time.Millisecond))

	clear(b.pending)
	b.pending = b.pending[:0]
	b.p.opts.Reclaim()

	if b.r.batches%memoryLogEvery == 0 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		b.r.log.WithFields(logrus.Fields{
			"heap_alloc": humanize.IBytes(ms.HeapAlloc),
			"heap_sys":   humanize.IBytes(ms.HeapSys),
			"num_gc":     ms.NumGC,
		}).Info("memory")
	}
	return nil
}

// process feeds every chunk through the normalizer in order while the next
// chunk is read in the background.
func (p *Pipeline) process(ctx context.Context, r *run) error {
	b := &batcher{
		p:       p,
		r:       r,
		target:  writer.BusinessTarget(r.cols),
		pending: make([]*record.Business, 0, p.opts.BatchSize),
		began:   time.Now(),
	}
	if len(r.chunks) == 0 {
		return nil
	}

	recs, err := chunk.Read(r.chunks[0])
	if err != nil {
		return err
	}
	for i := range r.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			g    errgroup.Group
			next []json.RawMessage
		)
		if i+1 < len(r.chunks) {
			c := r.chunks[i+1]
			g.Go(func() error {
				var err error
				next, err = chunk.Read(c)
				return err
			})
		}

		stop, err := p.consume(ctx, r.norm, b, recs)
		readErr := g.Wait()
		if err != nil {
			return err
		}

		c := r.norm.Counters()
		r.log.WithFields(logrus.Fields{
			"chunk":     i + 1,
			"chunks":    len(r.chunks),
			"records":   c.Records,
			"processed": c.Processed(),
			"new":       c.New,
		}).Debug("chunk processed")
		if p.opts.OnChunk != nil {
			p.opts.OnChunk(Progress{Chunk: i + 1, Chunks: len(r.chunks), Records: c.Records, Processed: c.Processed()})
		}

		if stop {
			r.log.WithField("limit", p.opts.Limit).Info("record limit reached")
			break
		}
		if readErr != nil {
			return readErr
		}
		recs = next
	}
	return b.flush(ctx)
}

// consume observes recs in order. stop reports that the record limit was
// reached.
func (p *Pipeline) consume(ctx context.Context, n *normalize.Normalizer, b *batcher, recs []json.RawMessage) (stop bool, err error) {
	for _, raw := range recs {
		outcome, biz := n.Observe(raw)
		if outcome == normalize.Added {
			if err := b.add(ctx, biz); err != nil {
				return false, err
			}
		}
		if p.opts.Limit > 0 && n.Counters().Processed() >= p.opts.Limit {
			return true, nil
		}
	}
	return false, nil
}
