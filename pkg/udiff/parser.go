// Package udiff parses unified-diff text into structured per-file change
// records. It understands both Subversion-style sections (Index: headers,
// nonexistent-revision sentinels, property blocks) and git-style sections
// (diff --git headers, /dev/null sentinels, rename and binary markers).
package udiff

import (
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

// Sentinel markers that introduce or classify diff sections.
const (
	markerIndex     = "Index: "
	markerGit       = "diff --git "
	markerOldFile   = "--- "
	markerNewFile   = "+++ "
	markerHunk      = "@@ "
	markerProperty  = "Property changes on: "
	markerNoNewline = "\\ No newline"

	devNull = "/dev/null"
)

// binaryMarkers identify a section whose content cannot be diffed by line.
var binaryMarkers = []string{
	"Cannot display: file marked as a binary type.",
	"Binary files ",
	"GIT binary patch",
}

// Parse turns raw unified-diff text for one revision into an ordered
// sequence of change records, one per file section. Empty input yields an
// empty sequence. Structurally malformed input fails with a
// [churn.ParseError] carrying the revision and an excerpt of the offending
// line; the parser never silently undercounts.
func Parse(text string, revision int64) ([]churn.ChangeRecord, error) {
	parser := &parser{
		revision: revision,
		lines:    splitLines(text),
	}

	return parser.run()
}

// parser walks the diff line by line, accumulating one section at a time.
type parser struct {
	revision int64
	lines    []string
	pos      int
	records  []churn.ChangeRecord
	section  *section
}

// section accumulates the state of one per-file diff section.
type section struct {
	oldPath    string
	newPath    string
	oldMissing bool
	newMissing bool
	haveHeader bool
	hasHunks   bool
	isBinary   bool
	isRename   bool
	isNewFile  bool
	isDeleted  bool
	added      int
	removed    int
}

func (p *parser) run() ([]churn.ChangeRecord, error) {
	p.records = make([]churn.ChangeRecord, 0)

	for p.pos < len(p.lines) {
		line := p.lines[p.pos]

		switch {
		case strings.HasPrefix(line, markerIndex), strings.HasPrefix(line, markerGit):
			if err := p.flush(); err != nil {
				return nil, err
			}

			p.section = &section{}
			p.seedSectionPaths(line)
			p.scanGitExtendedHeaders(line)
			p.pos++
		case strings.HasPrefix(line, markerOldFile):
			if err := p.readFileHeader(); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "@@"):
			if err := p.readHunk(); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, markerProperty):
			if p.section == nil {
				p.section = &section{}
				p.section.oldPath = strings.TrimPrefix(line, markerProperty)
				p.section.newPath = p.section.oldPath
			}

			p.skipPropertyBlock()
		case isBinaryMarker(line):
			if p.section != nil {
				p.section.isBinary = true
			}

			p.pos++
		default:
			p.pos++
		}
	}

	if err := p.flush(); err != nil {
		return nil, err
	}

	return p.records, nil
}

// seedSectionPaths extracts preliminary paths from a section introducer.
// Sections with no "---"/"+++" pair (Subversion property-only changes, git
// renames with no content change) have only these to identify the file.
func (p *parser) seedSectionPaths(line string) {
	if path, ok := strings.CutPrefix(line, markerIndex); ok {
		p.section.oldPath = path
		p.section.newPath = path

		return
	}

	body := strings.TrimPrefix(line, markerGit)

	// "diff --git a/old b/new"; unparseable spaced paths are resolved by
	// the "---"/"+++" pair or rename headers that follow.
	idx := strings.Index(body, " b/")
	if idx < 0 || !strings.HasPrefix(body, "a/") {
		return
	}

	p.section.oldPath = body[len("a/"):idx]
	p.section.newPath = body[idx+len(" b/"):]
}

// scanGitExtendedHeaders inspects a "diff --git" line and the extended
// header lines that follow it for rename and file-creation markers.
// Subversion "Index:" lines carry no extended headers, so this is a no-op
// for them.
func (p *parser) scanGitExtendedHeaders(line string) {
	if !strings.HasPrefix(line, markerGit) {
		return
	}

	for look := p.pos + 1; look < len(p.lines); look++ {
		next := p.lines[look]
		if !isGitExtendedHeader(next) {
			break
		}

		if path, ok := strings.CutPrefix(next, "rename from "); ok {
			p.section.isRename = true
			p.section.oldPath = path
		}

		if path, ok := strings.CutPrefix(next, "rename to "); ok {
			p.section.isRename = true
			p.section.newPath = path
		}

		if strings.HasPrefix(next, "new file mode ") {
			p.section.isNewFile = true
		}

		if strings.HasPrefix(next, "deleted file mode ") {
			p.section.isDeleted = true
		}
	}
}

// gitExtendedHeaderPrefixes are the extended header lines git emits between
// a "diff --git" line and the "---"/"+++" pair.
var gitExtendedHeaderPrefixes = []string{
	"old mode ", "new mode ", "deleted file mode ", "new file mode ",
	"copy from ", "copy to ", "rename from ", "rename to ",
	"similarity index ", "dissimilarity index ", "index ",
}

func isGitExtendedHeader(line string) bool {
	for _, prefix := range gitExtendedHeaderPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}

	return false
}

// readFileHeader consumes a "---" / "+++" header pair. A "---" line not
// followed by its "+++" partner is structurally malformed.
func (p *parser) readFileHeader() error {
	oldLine := p.lines[p.pos]

	if p.pos+1 >= len(p.lines) || !strings.HasPrefix(p.lines[p.pos+1], markerNewFile) {
		return churn.NewParseError(p.revision, "unmatched file header", oldLine)
	}

	newLine := p.lines[p.pos+1]

	if p.section == nil {
		// Plain unified diff with no Index/git introducer.
		p.section = &section{}
	}

	oldPath, oldMissing := parseHeaderPath(strings.TrimPrefix(oldLine, markerOldFile), "a/")
	newPath, newMissing := parseHeaderPath(strings.TrimPrefix(newLine, markerNewFile), "b/")

	p.section.oldPath = oldPath
	p.section.newPath = newPath
	p.section.oldMissing = oldMissing
	p.section.newMissing = newMissing
	p.section.haveHeader = true
	p.pos += 2

	return nil
}

// readHunk consumes a hunk header and exactly the number of old-side and
// new-side lines its ranges declare, counting additions and removals.
// Running out of input or hitting a foreign line mid-hunk is malformed.
func (p *parser) readHunk() error {
	header := p.lines[p.pos]

	if p.section == nil || !p.section.haveHeader {
		return churn.NewParseError(p.revision, "hunk outside file section", header)
	}

	oldCount, newCount, ok := parseHunkRanges(header)
	if !ok {
		return churn.NewParseError(p.revision, "bad hunk header", header)
	}

	p.section.hasHunks = true
	p.pos++

	for oldCount > 0 || newCount > 0 {
		if p.pos >= len(p.lines) {
			return churn.NewParseError(p.revision, "unterminated hunk", header)
		}

		line := p.lines[p.pos]

		switch {
		case strings.HasPrefix(line, markerNoNewline):
			// Structural marker, counts toward neither side.
		case strings.HasPrefix(line, "+"):
			if newCount == 0 {
				return churn.NewParseError(p.revision, "hunk overruns declared range", line)
			}

			p.section.added++
			newCount--
		case strings.HasPrefix(line, "-"):
			if oldCount == 0 {
				return churn.NewParseError(p.revision, "hunk overruns declared range", line)
			}

			p.section.removed++
			oldCount--
		case line == "" || strings.HasPrefix(line, " "):
			if oldCount == 0 || newCount == 0 {
				return churn.NewParseError(p.revision, "hunk overruns declared range", line)
			}

			oldCount--
			newCount--
		default:
			return churn.NewParseError(p.revision, "unterminated hunk", line)
		}

		p.pos++
	}

	return nil
}

// skipPropertyBlock consumes a Subversion property-change block. Its body
// reuses +/- prefixes for property values, which must never reach the line
// counters.
func (p *parser) skipPropertyBlock() {
	p.pos++

	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if strings.HasPrefix(line, markerIndex) || strings.HasPrefix(line, markerGit) {
			return
		}

		p.pos++
	}
}

// flush classifies the finished section and emits its change record.
func (p *parser) flush() error {
	sec := p.section
	p.section = nil

	if sec == nil {
		return nil
	}

	path := sec.newPath
	if path == "" || path == devNull || sec.newMissing {
		path = sec.oldPath
	}

	if path == "" {
		return churn.NewParseError(p.revision, "section without file paths", "")
	}

	record := churn.ChangeRecord{Path: path}

	switch {
	case sec.isBinary:
		record.Kind = churn.KindBinary
	case !sec.hasHunks:
		// A rename with no content change still counts as a changed file.
		// Empty file creations and deletions carry a mode header but no
		// "---"/"+++" pair and no hunks.
		switch {
		case sec.isRename:
			record.Kind = churn.KindModified
		case sec.isNewFile:
			record.Kind = churn.KindAdded
		case sec.isDeleted:
			record.Kind = churn.KindDeleted
		default:
			record.Kind = churn.KindPropertyOnly
		}
	case sec.oldMissing:
		record.Kind = churn.KindAdded
		record.Added = sec.added
	case sec.newMissing:
		record.Kind = churn.KindDeleted
		record.Removed = sec.removed
	default:
		record.Kind = churn.KindModified
		record.Added = sec.added
		record.Removed = sec.removed
	}

	p.records = append(p.records, record)

	return nil
}

// parseHeaderPath extracts the path from a file-header payload and reports
// whether it denotes the nonexistent side. Subversion appends a tab plus
// "(revision N)" or "(nonexistent)"; git prefixes "a/" or "b/".
func parseHeaderPath(payload, gitPrefix string) (string, bool) {
	missing := false

	if idx := strings.IndexByte(payload, '\t'); idx >= 0 {
		annotation := payload[idx+1:]
		if strings.Contains(annotation, "(nonexistent)") || strings.Contains(annotation, "(revision 0)") {
			missing = true
		}

		payload = payload[:idx]
	}

	if payload == devNull {
		return payload, true
	}

	payload = strings.TrimPrefix(payload, gitPrefix)

	return payload, missing
}

// parseHunkRanges extracts the old-side and new-side line counts from a
// hunk header of the form "@@ -start[,count] +start[,count] @@".
func parseHunkRanges(header string) (oldCount, newCount int, ok bool) {
	body := strings.TrimPrefix(header, "@@ ")

	end := strings.Index(body, " @@")
	if end < 0 {
		return 0, 0, false
	}

	fields := strings.Fields(body[:end])
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "-") || !strings.HasPrefix(fields[1], "+") {
		return 0, 0, false
	}

	oldCount, ok = parseRangeCount(fields[0][1:])
	if !ok {
		return 0, 0, false
	}

	newCount, ok = parseRangeCount(fields[1][1:])
	if !ok {
		return 0, 0, false
	}

	return oldCount, newCount, true
}

// parseRangeCount parses "start,count" or bare "start" (count defaults to 1).
func parseRangeCount(spec string) (int, bool) {
	start := spec
	count := "1"

	if idx := strings.IndexByte(spec, ','); idx >= 0 {
		start = spec[:idx]
		count = spec[idx+1:]
	}

	if _, err := strconv.Atoi(start); err != nil {
		return 0, false
	}

	n, err := strconv.Atoi(count)
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

func isBinaryMarker(line string) bool {
	for _, marker := range binaryMarkers {
		if strings.HasPrefix(line, marker) {
			return true
		}
	}

	return false
}

// splitLines splits on newlines, tolerating CRLF input and a missing final
// newline. A trailing empty element from the final newline is dropped so it
// is not mistaken for hunk content.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}
