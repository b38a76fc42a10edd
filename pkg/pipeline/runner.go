// Package pipeline orchestrates one churn run: enumerate revisions,
// retrieve and parse diffs, filter change records, and fold them into an
// aggregation result in ascending revision order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
	"github.com/Sumatoshi-tech/revchurn/pkg/observability"
	"github.com/Sumatoshi-tech/revchurn/pkg/udiff"
	"github.com/Sumatoshi-tech/revchurn/pkg/vcs"
)

// Policy selects how per-revision failures are handled. Whichever policy
// is chosen applies uniformly to every revision in the run.
type Policy int

const (
	// PolicyAbort stops the whole run on the first per-revision failure.
	// The default: silent undercounting is worse than stopping.
	PolicyAbort Policy = iota
	// PolicySkip excludes failing revisions from aggregation and records
	// them in the result with a reason.
	PolicySkip
)

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "abort":
		return PolicyAbort, nil
	case "skip":
		return PolicySkip, nil
	default:
		return PolicyAbort, fmt.Errorf("%w: unknown error policy %q", churn.ErrValidation, name)
	}
}

// Options configures one run.
type Options struct {
	From     int64
	To       int64
	Criteria churn.Criteria

	// Workers bounds concurrent diff retrieval. Zero or one means
	// sequential processing.
	Workers int

	Policy Policy
}

// Runner wires the pipeline's collaborators.
type Runner struct {
	enumerator *vcs.Enumerator
	diffs      vcs.DiffSource
	logger     *slog.Logger
	metrics    *observability.PipelineMetrics
}

// NewRunner builds a Runner. metrics may be nil.
func NewRunner(
	enumerator *vcs.Enumerator,
	diffs vcs.DiffSource,
	logger *slog.Logger,
	metrics *observability.PipelineMetrics,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		enumerator: enumerator,
		diffs:      diffs,
		logger:     logger,
		metrics:    metrics,
	}
}

// outcome is the retrieval result for one enumerated revision. Workers
// each write only their own slot, so completion order never matters:
// folding walks the slice in enumeration order.
type outcome struct {
	accepted []churn.ChangeRecord
	err      error
}

// Run executes the pipeline and returns the finished aggregation.
// Validation failures surface before any external call. Under PolicyAbort
// any per-revision failure aborts the run; under PolicySkip the revision
// is excluded and recorded. A log-source failure always aborts: revision
// identity is foundational.
func (r *Runner) Run(ctx context.Context, opts Options) (churn.Result, error) {
	filter, err := churn.NewFilter(opts.Criteria)
	if err != nil {
		return churn.Result{}, err
	}

	descriptors, err := r.enumerator.Enumerate(ctx, opts.From, opts.To, opts.Criteria.Author)
	if err != nil {
		return churn.Result{}, err
	}

	r.logger.InfoContext(ctx, "enumerated revisions",
		"from", opts.From, "to", opts.To, "count", len(descriptors))

	diffOpts := vcs.DiffOptions{
		IgnoreWhitespace: opts.Criteria.IgnoreWhitespace,
		IgnoreEOL:        opts.Criteria.IgnoreEOL,
	}

	outcomes := make([]outcome, len(descriptors))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, opts.Workers))

	for i, descriptor := range descriptors {
		group.Go(func() error {
			outcomes[i] = r.processRevision(groupCtx, descriptor, diffOpts, filter)

			if outcomes[i].err != nil && opts.Policy == PolicyAbort {
				return outcomes[i].err
			}

			return nil
		})
	}

	if waitErr := group.Wait(); waitErr != nil {
		return churn.Result{}, waitErr
	}

	return r.fold(ctx, descriptors, outcomes), nil
}

// processRevision retrieves, parses, and filters one revision's diff.
func (r *Runner) processRevision(
	ctx context.Context,
	descriptor churn.RevisionDescriptor,
	diffOpts vcs.DiffOptions,
	filter *churn.Filter,
) outcome {
	start := time.Now()

	text, err := r.diffs.Diff(ctx, descriptor.Number, diffOpts)

	r.metrics.RecordSourceCall(ctx, "diff", time.Since(start))

	if err != nil {
		r.logger.WarnContext(ctx, "diff retrieval failed",
			"revision", descriptor.Number, "error", err)

		return outcome{err: err}
	}

	records, err := udiff.Parse(text, descriptor.Number)
	if err != nil {
		r.metrics.RecordParseFailure(ctx)
		r.logger.WarnContext(ctx, "diff parse failed",
			"revision", descriptor.Number, "error", err)

		return outcome{err: err}
	}

	accepted := make([]churn.ChangeRecord, 0, len(records))

	for _, record := range records {
		if filter.Accept(record) {
			accepted = append(accepted, record)
		}
	}

	return outcome{accepted: accepted}
}

// fold combines the per-revision outcomes in ascending revision order.
func (r *Runner) fold(
	ctx context.Context,
	descriptors []churn.RevisionDescriptor,
	outcomes []outcome,
) churn.Result {
	agg := churn.NewAggregator()

	for i, descriptor := range descriptors {
		switch {
		case outcomes[i].err != nil:
			agg.Skip(descriptor.Number, outcomes[i].err.Error())
			r.metrics.RecordRevision(ctx, observability.StatusSkipped)
		case len(outcomes[i].accepted) == 0:
			agg.Fold(descriptor.Number, descriptor.Author, nil)
			r.metrics.RecordRevision(ctx, observability.StatusEmpty)
		default:
			agg.Fold(descriptor.Number, descriptor.Author, outcomes[i].accepted)
			r.metrics.RecordRevision(ctx, observability.StatusFolded)
		}
	}

	result := agg.Result()

	r.logger.InfoContext(ctx, "aggregation complete",
		"revisions", len(result.Revisions),
		"skipped", len(result.Skipped),
		"added", result.TotalAdded,
		"removed", result.TotalRemoved,
		"files", result.TotalFilesChanged)

	return result
}
