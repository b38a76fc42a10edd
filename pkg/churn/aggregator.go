package churn

import (
	"slices"
	"strings"
)

// Result is the cumulative outcome of one aggregation run. Totals are
// always exact sums over Revisions: a revision is folded exactly once and
// contributes all of its accepted records or nothing.
type Result struct {
	TotalAdded        int
	TotalRemoved      int
	TotalFilesChanged int
	Revisions         []RevisionStat
	Skipped           []SkippedRevision
	Extensions        []ExtensionStat
}

// Aggregator folds filtered change records into a running Result. It does
// no filtering or parsing of its own; it only combines already-accepted
// input, one call per revision.
type Aggregator struct {
	result     Result
	extensions map[string]*ExtensionStat
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{extensions: make(map[string]*ExtensionStat)}
}

// Fold incorporates one revision's accepted records. A revision with no
// accepted records is consumed without emitting a per-revision entry, so
// it is invisible in the breakdown and in the totals.
func (a *Aggregator) Fold(revision int64, author string, accepted []ChangeRecord) {
	if len(accepted) == 0 {
		return
	}

	stat := RevisionStat{
		Revision:     revision,
		Author:       author,
		FilesChanged: len(accepted),
	}

	for _, record := range accepted {
		stat.LinesAdded += record.Added
		stat.LinesRemoved += record.Removed

		ext := record.Extension()

		entry := a.extensions[ext]
		if entry == nil {
			entry = &ExtensionStat{Extension: ext}
			a.extensions[ext] = entry
		}

		entry.FilesChanged++
		entry.LinesAdded += record.Added
		entry.LinesRemoved += record.Removed
	}

	a.result.TotalAdded += stat.LinesAdded
	a.result.TotalRemoved += stat.LinesRemoved
	a.result.TotalFilesChanged += stat.FilesChanged
	a.result.Revisions = append(a.result.Revisions, stat)
}

// Skip records a revision excluded under the skip-and-continue policy.
// Skipped revisions contribute nothing to totals but are named in the
// final report.
func (a *Aggregator) Skip(revision int64, reason string) {
	a.result.Skipped = append(a.result.Skipped, SkippedRevision{
		Revision: revision,
		Reason:   reason,
	})
}

// Result returns the finished aggregation. Per-revision entries are sorted
// by ascending revision number regardless of fold order, so totals and
// ordering are independent of retrieval completion order.
func (a *Aggregator) Result() Result {
	out := a.result

	out.Revisions = slices.Clone(out.Revisions)
	slices.SortFunc(out.Revisions, func(x, y RevisionStat) int {
		return int(x.Revision - y.Revision)
	})

	out.Skipped = slices.Clone(out.Skipped)
	slices.SortFunc(out.Skipped, func(x, y SkippedRevision) int {
		return int(x.Revision - y.Revision)
	})

	out.Extensions = make([]ExtensionStat, 0, len(a.extensions))
	for _, entry := range a.extensions {
		out.Extensions = append(out.Extensions, *entry)
	}

	slices.SortFunc(out.Extensions, func(x, y ExtensionStat) int {
		return strings.Compare(x.Extension, y.Extension)
	})

	return out
}
