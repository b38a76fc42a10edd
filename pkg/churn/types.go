// Package churn defines the data model for revision-range churn reporting:
// revision descriptors, per-file change records, filtering, and aggregation.
package churn

import (
	"strings"
	"time"
)

// ChangeKind classifies a per-file change within one revision.
type ChangeKind int

const (
	// KindAdded indicates a file created in this revision.
	KindAdded ChangeKind = iota
	// KindModified indicates a file whose content changed.
	KindModified
	// KindDeleted indicates a file removed in this revision.
	KindDeleted
	// KindBinary indicates a binary file change; line counts do not apply.
	KindBinary
	// KindPropertyOnly indicates a metadata-only change with no content hunks.
	KindPropertyOnly
)

// String returns the lowercase name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindModified:
		return "modified"
	case KindDeleted:
		return "deleted"
	case KindBinary:
		return "binary"
	case KindPropertyOnly:
		return "property-only"
	default:
		return "unknown"
	}
}

// Countable reports whether line counts apply to this kind.
// Binary and property-only changes contribute to file counts but never
// to line totals.
func (k ChangeKind) Countable() bool {
	return k != KindBinary && k != KindPropertyOnly
}

// RevisionDescriptor is the metadata for one enumerated revision.
// Immutable once produced by a log source.
type RevisionDescriptor struct {
	Number    int64
	Author    string
	Timestamp time.Time
	Message   string
}

// RawDiff carries the raw unified-diff text for one revision, diffed
// against its immediate predecessor. It exists only between retrieval
// and parsing.
type RawDiff struct {
	Revision int64
	Text     string
}

// ChangeRecord is one file's change within one revision.
// For Kind = KindBinary or KindPropertyOnly, Added and Removed are zero.
type ChangeRecord struct {
	Path    string
	Added   int
	Removed int
	Kind    ChangeKind
}

// Extension returns the file extension of the record's path: the text after
// the last dot of the last path segment, without the dot. A path with no
// dot in its last segment has the empty extension.
func (c ChangeRecord) Extension() string {
	base := c.Path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}

	idx := strings.LastIndexByte(base, '.')
	if idx < 0 {
		return ""
	}

	return base[idx+1:]
}

// RevisionStat summarizes the accepted changes of one revision.
type RevisionStat struct {
	Revision     int64
	Author       string
	FilesChanged int
	LinesAdded   int
	LinesRemoved int
}

// SkippedRevision records a revision excluded from aggregation under the
// skip-and-continue policy, with the reason it was excluded.
type SkippedRevision struct {
	Revision int64
	Reason   string
}

// ExtensionStat rolls up accepted changes by file extension across the
// whole range. The empty extension groups files without one.
type ExtensionStat struct {
	Extension    string
	FilesChanged int
	LinesAdded   int
	LinesRemoved int
}
