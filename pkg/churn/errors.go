package churn

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline error taxonomy. Callers match with
// errors.Is; the typed errors below carry diagnostic detail and report
// themselves as their sentinel.
var (
	// ErrValidation indicates a malformed revision range or filter
	// configuration. Always fatal, raised before any external call.
	ErrValidation = errors.New("invalid configuration")

	// ErrSourceUnavailable indicates the log or diff source could not be
	// reached, timed out, or returned structurally uninterpretable data.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrParse indicates structurally malformed diff text for a revision.
	ErrParse = errors.New("malformed diff")

	// ErrRender indicates a requested output format could not be produced
	// or written. Scoped to one format; other formats proceed.
	ErrRender = errors.New("render failed")
)

// excerptLimit bounds the diff excerpt carried by a ParseError.
const excerptLimit = 120

// ParseError reports structurally malformed diff text. It carries the
// revision it belongs to and a short excerpt of the offending input.
type ParseError struct {
	Revision int64
	Excerpt  string
	Reason   string
}

// NewParseError builds a ParseError, truncating the excerpt to a
// diagnostic-sized prefix.
func NewParseError(revision int64, reason, excerpt string) *ParseError {
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}

	return &ParseError{
		Revision: revision,
		Reason:   reason,
		Excerpt:  excerpt,
	}
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("malformed diff for revision %d: %s", e.Revision, e.Reason)
	}

	return fmt.Sprintf("malformed diff for revision %d: %s near %q", e.Revision, e.Reason, e.Excerpt)
}

// Is reports membership in the ErrParse class.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// SourceError reports a failed call against an external source.
type SourceError struct {
	Op       string
	Revision int64
	Err      error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Revision > 0 {
		return fmt.Sprintf("%s for revision %d: %v", e.Op, e.Revision, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is reports membership in the ErrSourceUnavailable class.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// RenderError reports a failure to render or write one output format.
type RenderError struct {
	Format string
	Err    error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Format, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// Is reports membership in the ErrRender class.
func (e *RenderError) Is(target error) bool {
	return target == ErrRender
}
