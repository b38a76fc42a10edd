package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRevisionsTotal     = "revchurn.revisions.total"
	metricSourceCallDuration = "revchurn.source.call.duration.seconds"
	metricParseFailures      = "revchurn.parse.failures.total"

	attrStatus = "status"
	attrOp     = "op"
)

// Revision outcome statuses recorded on the revisions counter.
const (
	StatusFolded  = "folded"
	StatusEmpty   = "empty"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// sourceCallBuckets covers fast local diffs through slow remote fetches.
var sourceCallBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// PipelineMetrics holds the OTel instruments for one churn run.
type PipelineMetrics struct {
	revisionsTotal     metric.Int64Counter
	sourceCallDuration metric.Float64Histogram
	parseFailures      metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	revisions, err := mt.Int64Counter(metricRevisionsTotal,
		metric.WithDescription("Revisions processed, by outcome"),
		metric.WithUnit("{revision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRevisionsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricSourceCallDuration,
		metric.WithDescription("External source call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sourceCallBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSourceCallDuration, err)
	}

	failures, err := mt.Int64Counter(metricParseFailures,
		metric.WithDescription("Diff parse failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricParseFailures, err)
	}

	return &PipelineMetrics{
		revisionsTotal:     revisions,
		sourceCallDuration: duration,
		parseFailures:      failures,
	}, nil
}

// RecordRevision counts one processed revision with its outcome status.
func (pm *PipelineMetrics) RecordRevision(ctx context.Context, status string) {
	if pm == nil {
		return
	}

	pm.revisionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordSourceCall records the duration of one external source call.
func (pm *PipelineMetrics) RecordSourceCall(ctx context.Context, op string, duration time.Duration) {
	if pm == nil {
		return
	}

	pm.sourceCallDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String(attrOp, op)))
}

// RecordParseFailure counts one diff parse failure.
func (pm *PipelineMetrics) RecordParseFailure(ctx context.Context) {
	if pm == nil {
		return
	}

	pm.parseFailures.Add(ctx, 1)
}
