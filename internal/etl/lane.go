package etl

import (
	"context"
	"time"

	"github.com/BartekS5/cinesync/pkg/logger"
	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/BartekS5/cinesync/pkg/retry"
)

// ChangeSource is the read side of one stream.
type ChangeSource[A any] interface {
	ListChanged(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error)
	Fetch(ctx context.Context, ids []string) ([]A, error)
}

// Loader is the write side shared by every stream.
type Loader interface {
	EnsureSchema(ctx context.Context, def *models.SchemaDefinition) error
	Load(ctx context.Context, docs []models.Document) (LoadResult, error)
}

// Lane is what the pipeline drives for each stream.
type Lane interface {
	Stream() models.Stream
	Prepare(ctx context.Context) error
	Changed(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error)
	// Apply fetches, transforms and writes the given ids and returns the
	// number of documents produced. dryRun skips the write.
	Apply(ctx context.Context, ids []string, dryRun bool) (int, error)
}

// Policies are the retry settings for reads and writes. Classifiers and
// logging are attached by the lane.
type Policies struct {
	Source retry.Policy
	Sink   retry.Policy
}

// StreamLane binds a source, a transform and a loader for one stream.
type StreamLane[A any] struct {
	stream    models.Stream
	source    ChangeSource[A]
	transform func([]A) ([]models.Document, error)
	loader    Loader
	schema    *models.SchemaDefinition

	sourceRetry retry.Policy
	sinkRetry   retry.Policy
}

func NewLane[A any](
	stream models.Stream,
	source ChangeSource[A],
	transform func([]A) ([]models.Document, error),
	loader Loader,
	schema *models.SchemaDefinition,
	policies Policies,
) *StreamLane[A] {
	return &StreamLane[A]{
		stream:      stream,
		source:      source,
		transform:   transform,
		loader:      loader,
		schema:      schema,
		sourceRetry: classify(policies.Source, stream, "read", SourceRetryable),
		sinkRetry:   classify(policies.Sink, stream, "write", SinkRetryable),
	}
}

func classify(p retry.Policy, stream models.Stream, op string, retryable func(error) bool) retry.Policy {
	p.Retryable = retryable
	p.OnRetry = func(attempt, remaining int, delay time.Duration, err error) {
		logger.Warnf("%s %s failed (attempt %d, %d left), retrying in %s: %v",
			stream, op, attempt, remaining, delay.Round(time.Millisecond), err)
	}
	return p
}

func (l *StreamLane[A]) Stream() models.Stream { return l.stream }

func (l *StreamLane[A]) Prepare(ctx context.Context) error {
	if l.schema == nil {
		return nil
	}
	return retry.Do(ctx, l.sinkRetry, func(ctx context.Context) error {
		return l.loader.EnsureSchema(ctx, l.schema)
	})
}

func (l *StreamLane[A]) Changed(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	return retry.DoValue(ctx, l.sourceRetry, func(ctx context.Context) ([]models.ChangeRecord, error) {
		return l.source.ListChanged(ctx, since, limit)
	})
}

func (l *StreamLane[A]) Apply(ctx context.Context, ids []string, dryRun bool) (int, error) {
	aggs, err := retry.DoValue(ctx, l.sourceRetry, func(ctx context.Context) ([]A, error) {
		return l.source.Fetch(ctx, ids)
	})
	if err != nil {
		return 0, err
	}

	docs, err := l.transform(aggs)
	if err != nil {
		return 0, err
	}
	if dryRun {
		logger.Infof("[DRY RUN] Would load %d %s documents", len(docs), l.stream)
		return len(docs), nil
	}

	res, err := retry.DoValue(ctx, l.sinkRetry, func(ctx context.Context) (LoadResult, error) {
		return l.loader.Load(ctx, docs)
	})
	if err != nil {
		return 0, err
	}
	logger.Debugf("Mongo BulkWrite %s: Match %d, Mod %d, Upsert %d", l.stream, res.Matched, res.Modified, res.Upserted)
	return len(docs), nil
}
