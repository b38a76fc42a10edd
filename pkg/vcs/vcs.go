// Package vcs is the boundary to external version-control sources. It
// defines the log and diff source contracts consumed by the pipeline and
// ships two implementations: an exec-based Subversion client and a
// libgit2-backed reader for local git repositories.
package vcs

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

// DiffOptions are forwarded verbatim to the diff source, which omits
// whitespace-only or EOL-only differences from the returned text. The
// parser never interprets them.
type DiffOptions struct {
	IgnoreWhitespace bool
	IgnoreEOL        bool
}

// LogSource returns structured commit metadata for a revision range,
// ordered by ascending revision number.
type LogSource interface {
	Log(ctx context.Context, from, to int64) ([]churn.RevisionDescriptor, error)
}

// DiffSource returns the raw unified-diff text of one revision against its
// immediate predecessor.
type DiffSource interface {
	Diff(ctx context.Context, revision int64, opts DiffOptions) (string, error)
}

// Enumerator turns a (from, to, author) request into an ordered sequence
// of revision descriptors. Author filtering happens here, before any diff
// retrieval, so excluded revisions cost no diff calls.
type Enumerator struct {
	source LogSource
}

// NewEnumerator wraps a log source.
func NewEnumerator(source LogSource) *Enumerator {
	return &Enumerator{source: source}
}

// Enumerate validates the range and returns matching revision descriptors.
// An empty result is not an error; callers can distinguish "nothing in
// range" from a lookup failure. Range validation fails before any external
// call is made.
func (e *Enumerator) Enumerate(ctx context.Context, from, to int64, author string) ([]churn.RevisionDescriptor, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("%w: revision numbers start at 1, got %d:%d", churn.ErrValidation, from, to)
	}

	if from > to {
		return nil, fmt.Errorf("%w: from revision %d exceeds to revision %d", churn.ErrValidation, from, to)
	}

	descriptors, err := e.source.Log(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if author == "" {
		return descriptors, nil
	}

	matched := make([]churn.RevisionDescriptor, 0, len(descriptors))

	for _, descriptor := range descriptors {
		if descriptor.Author == author {
			matched = append(matched, descriptor)
		}
	}

	return matched, nil
}
