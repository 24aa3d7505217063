package analyzer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/adventurelime/explorer/internal/analyzer"

type metrics struct {
	passes   metric.Int64Counter
	skips    metric.Int64Counter
	samples  metric.Int64Counter
	unlocked metric.Int64Counter
	duration metric.Float64Histogram
}

// newMetrics uses the global OTel meter (no-op if not configured).
func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)

	if out.passes, err = m.Int64Counter("analyzer.passes",
		metric.WithDescription("Completed analysis passes")); err != nil {
		return nil, fmt.Errorf("creating passes counter: %w", err)
	}
	if out.skips, err = m.Int64Counter("analyzer.passes.skipped",
		metric.WithDescription("Passes skipped because one was already running")); err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	if out.samples, err = m.Int64Counter("analyzer.samples",
		metric.WithDescription("Interpolated samples mapped to tiles")); err != nil {
		return nil, fmt.Errorf("creating samples counter: %w", err)
	}
	if out.unlocked, err = m.Int64Counter("analyzer.tiles.unlocked",
		metric.WithDescription("Tiles unlocked")); err != nil {
		return nil, fmt.Errorf("creating unlocked counter: %w", err)
	}
	if out.duration, err = m.Float64Histogram("analyzer.pass.duration",
		metric.WithDescription("Wall time of an analysis pass"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return &out, nil
}

func (m *metrics) record(ctx context.Context, res Result) {
	m.passes.Add(ctx, 1)
	m.samples.Add(ctx, int64(res.Samples))
	m.unlocked.Add(ctx, int64(len(res.Unlocked)))
	m.duration.Record(ctx, float64(res.Duration.Microseconds())/1000)
}

func (m *metrics) skipped(ctx context.Context) {
	m.skips.Add(ctx, 1)
}
