package churn

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Criteria is the immutable filter configuration for one run.
// Extension exclusion wins over inclusion on overlap. The ignore flags are
// forwarded verbatim to the diff source and never interpreted locally.
type Criteria struct {
	Author           string
	IncludeExts      []string
	ExcludeExts      []string
	ExcludeGlobs     []string
	IgnoreWhitespace bool
	IgnoreEOL        bool
}

// Filter decides whether a change record counts toward aggregation.
// It is pure: the same record under the same criteria always yields the
// same verdict.
type Filter struct {
	include map[string]struct{}
	exclude map[string]struct{}
	globs   []string
}

// NewFilter compiles criteria into a Filter. Each exclusion glob is
// validated up front; a bad pattern fails with ErrValidation before any
// external call is made.
func NewFilter(criteria Criteria) (*Filter, error) {
	for _, pattern := range criteria.ExcludeGlobs {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: bad exclusion pattern %q", ErrValidation, pattern)
		}
	}

	return &Filter{
		include: extSet(criteria.IncludeExts),
		exclude: extSet(criteria.ExcludeExts),
		globs:   criteria.ExcludeGlobs,
	}, nil
}

// Accept reports whether the record counts toward aggregation. Binary and
// property-only records are subject to the same checks; a rejected record
// is dropped entirely, not counted as a zero-line file.
func (f *Filter) Accept(record ChangeRecord) bool {
	ext := record.Extension()

	if len(f.include) > 0 {
		if _, ok := f.include[ext]; !ok {
			return false
		}
	}

	if _, ok := f.exclude[ext]; ok {
		return false
	}

	for _, pattern := range f.globs {
		// Patterns were validated at construction.
		match, err := doublestar.Match(pattern, record.Path)
		if err == nil && match {
			return false
		}
	}

	return true
}

// extSet normalizes configured extensions into a lookup set, stripping any
// leading dot so "ts" and ".ts" configure the same thing.
func extSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.TrimPrefix(ext, ".")] = struct{}{}
	}

	return set
}
