// Package aggregate merges per-stream player sums into one total per player.
package aggregate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
	"github.com/okian/podium/pkg/tracing"
)

// StreamReader is the read side of the score store.
type StreamReader interface {
	SumByPlayer(ctx context.Context, stream string) (map[string]model.PlayerSum, error)
}

// Aggregator reads streams concurrently and sums them per player.
type Aggregator struct {
	reader      StreamReader
	concurrency int
	log         logger.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency bounds how many streams are read at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// New returns an Aggregator reading from r.
func New(r StreamReader, opts ...Option) *Aggregator {
	a := &Aggregator{reader: r, concurrency: 4, log: logger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns every player found in streams with the sum of their values
// across all of them. It is all-or-nothing: if any stream read fails the result
// is discarded and an ErrDataSource error is returned.
func (a *Aggregator) Aggregate(ctx context.Context, streams []string) (map[string]model.PlayerAggregate, error) {
	const op = "aggregate"
	start := time.Now()

	ctx, span := tracing.Tracer("aggregate").Start(ctx, "aggregate.streams")
	defer span.End()

	names := slices.Clone(streams)
	slices.Sort(names)
	names = slices.Compact(names)
	span.SetAttributes(attribute.StringSlice("podium.streams", names))

	if len(names) == 0 {
		return map[string]model.PlayerAggregate{}, nil
	}

	perStream := make([]map[string]model.PlayerSum, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, name := range names {
		g.Go(func() error {
			readStart := time.Now()
			sums, err := a.reader.SumByPlayer(gctx, name)
			metrics.RecordStreamRead(name, float64(time.Since(readStart).Milliseconds()), err != nil)
			if err != nil {
				return fmt.Errorf("stream %s: %w", name, err)
			}
			perStream[i] = sums
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordErrorByComponent("aggregate", "data_source")
		a.log.Warn(ctx, "aggregation failed", logger.Error(err), logger.Int("streams", len(names)))
		return nil, model.WrapKind(op, model.ErrDataSource, err)
	}

	out := merge(names, perStream)
	metrics.RecordAggregationLatency(float64(time.Since(start).Milliseconds()))
	span.SetAttributes(attribute.Int("podium.players", len(out)))
	return out, nil
}

// merge walks streams in name order so the chosen display name is stable.
func merge(names []string, perStream []map[string]model.PlayerSum) map[string]model.PlayerAggregate {
	out := make(map[string]model.PlayerAggregate)
	for i := range names {
		for id, sum := range perStream[i] {
			agg, ok := out[id]
			if !ok {
				agg = model.PlayerAggregate{PlayerID: id}
			}
			agg.Total += sum.Total
			if agg.PlayerName == "" {
				agg.PlayerName = sum.PlayerName
			}
			out[id] = agg
		}
	}
	return out
}
