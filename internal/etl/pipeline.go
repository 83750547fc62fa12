package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/cinesync/internal/state"
	"github.com/BartekS5/cinesync/pkg/logger"
	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/BartekS5/cinesync/pkg/retry"
	"github.com/samber/lo"
)

// Epsilon is subtracted from a batch's newest effective time before it
// becomes the watermark, so rows committed later with that same timestamp
// are picked up by the next query.
const Epsilon = time.Microsecond

type Options struct {
	BatchSize    int
	IdleInterval time.Duration
	DryRun       bool
	// Sleep waits out the idle interval; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Pipeline polls every lane in turn, one batch per lane per iteration,
// and commits a lane's watermark only after its batch is fully written.
type Pipeline struct {
	lanes []Lane
	store state.Store
	opts  Options

	started    bool
	watermarks state.Watermarks
	// boundary holds, per stream, the ids committed at the current
	// watermark's batch maximum.
	boundary map[models.Stream]map[string]edgeRow
}

// edgeRow is a row committed at the batch maximum. It is applied once
// more on the next cycle, since a transaction committing with the same
// timestamp may have changed it, and skipped after that while its
// effective time stays the same.
type edgeRow struct {
	at          time.Time
	redelivered bool
}

func NewPipeline(store state.Store, opts Options, lanes ...Lane) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.SleepContext
	}
	return &Pipeline{
		lanes:    lanes,
		store:    store,
		opts:     opts,
		boundary: make(map[models.Stream]map[string]edgeRow),
	}
}

// Watermarks returns a copy of the in-memory watermarks.
func (p *Pipeline) Watermarks() state.Watermarks {
	return p.watermarks.Clone()
}

func (p *Pipeline) start(ctx context.Context) error {
	if p.started {
		return nil
	}
	w, err := p.store.Load(ctx)
	if err != nil {
		return err
	}
	p.watermarks = w

	if !p.opts.DryRun {
		for _, lane := range p.lanes {
			if err := lane.Prepare(ctx); err != nil {
				return fmt.Errorf("%s stream: %w", lane.Stream(), err)
			}
		}
	}

	for _, lane := range p.lanes {
		logger.Infof("Start %s from %s", lane.Stream(), formatWatermark(w[lane.Stream()]))
	}
	p.started = true
	return nil
}

// Run loops until ctx is cancelled or a stream fails. It sleeps the idle
// interval after every iteration in which no stream had changes.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		processed, err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			logger.Info("Stopping: %v", ctx.Err())
			return nil
		}
		if err != nil {
			return err
		}
		if p.opts.DryRun {
			return nil
		}
		if !processed {
			logger.Infof("No new data. Sleep %s", p.opts.IdleInterval)
			if err := p.opts.Sleep(ctx, p.opts.IdleInterval); err != nil {
				logger.Info("Stopping: %v", err)
				return nil
			}
		}
	}
}

// Drain iterates until one iteration finds no changes in any stream.
func (p *Pipeline) Drain(ctx context.Context) error {
	for {
		processed, err := p.RunOnce(ctx)
		if err != nil {
			return err
		}
		if !processed || p.opts.DryRun {
			return nil
		}
	}
}

// RunOnce syncs at most one batch per stream, in lane order, and reports
// whether any stream had changes.
func (p *Pipeline) RunOnce(ctx context.Context) (bool, error) {
	if err := p.start(ctx); err != nil {
		return false, err
	}

	processed := false
	for _, lane := range p.lanes {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		n, err := p.syncStream(ctx, lane)
		if err != nil {
			return processed, fmt.Errorf("%s stream: %w", lane.Stream(), err)
		}
		if n > 0 {
			processed = true
		}
	}
	return processed, nil
}

func (p *Pipeline) syncStream(ctx context.Context, lane Lane) (int, error) {
	stream := lane.Stream()
	since := p.watermarks[stream]

	limit := p.opts.BatchSize
	records, err := lane.Changed(ctx, since, limit)
	if err != nil {
		return 0, err
	}
	fresh := p.unseen(stream, records)
	if len(fresh) == 0 && len(records) == limit {
		// The whole batch is rows already committed at the boundary.
		// Widen the query so rows sharing that timestamp behind them are
		// reached instead of being hidden by the limit.
		limit = len(p.boundary[stream]) + p.opts.BatchSize
		if records, err = lane.Changed(ctx, since, limit); err != nil {
			return 0, err
		}
		fresh = p.unseen(stream, records)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	ids := lo.Map(fresh, func(r models.ChangeRecord, _ int) string { return r.ID })
	n, err := lane.Apply(ctx, ids, p.opts.DryRun)
	if err != nil {
		return 0, err
	}
	if p.opts.DryRun {
		return len(fresh), nil
	}

	newest := lo.MaxBy(records, func(a, b models.ChangeRecord) bool {
		return a.UpdatedAt.After(b.UpdatedAt)
	}).UpdatedAt
	next := newest.Add(-Epsilon)
	if next.Before(since) {
		next = since
	}

	w := p.watermarks.Clone()
	w[stream] = next
	if err := p.store.Save(ctx, w); err != nil {
		return 0, fmt.Errorf("failed to persist watermark: %w", err)
	}
	p.watermarks = w

	prev := p.boundary[stream]
	edge := make(map[string]edgeRow)
	for _, r := range records {
		if !r.UpdatedAt.Equal(newest) {
			continue
		}
		old, ok := prev[r.ID]
		edge[r.ID] = edgeRow{
			at:          r.UpdatedAt,
			redelivered: ok && old.at.Equal(r.UpdatedAt),
		}
	}
	p.boundary[stream] = edge

	logger.Infof("Indexed %d %s; rows=%d state=%s", n, stream, len(fresh), formatWatermark(next))
	return len(fresh), nil
}

// unseen drops boundary records that were already applied again after
// their commit and whose effective time has not moved since.
func (p *Pipeline) unseen(stream models.Stream, records []models.ChangeRecord) []models.ChangeRecord {
	edge := p.boundary[stream]
	if len(edge) == 0 {
		return records
	}
	return lo.Filter(records, func(r models.ChangeRecord, _ int) bool {
		row, ok := edge[r.ID]
		return !ok || !row.redelivered || !row.at.Equal(r.UpdatedAt)
	})
}

func formatWatermark(t time.Time) string {
	if t.IsZero() {
		return "the beginning"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
