package vcs

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

// svnBinary is the Subversion client executable.
const svnBinary = "svn"

// runnerFunc executes an external command and returns its stdout. Swapped
// out in tests so no real svn client is needed.
type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// SVN is an exec-based source backed by the Subversion command-line
// client. Each call spawns one svn process against the configured
// repository URL or working-copy path.
type SVN struct {
	repo    string
	timeout time.Duration
	run     runnerFunc
}

// NewSVN creates a Subversion source. A non-zero timeout bounds each svn
// invocation; an expired call surfaces as a source-unavailable error, never
// as "no changes".
func NewSVN(repo string, timeout time.Duration) *SVN {
	return &SVN{
		repo:    repo,
		timeout: timeout,
		run:     runCommand,
	}
}

// Log runs "svn log --xml" over the range and parses the result into
// revision descriptors, ordered by ascending revision number.
func (s *SVN) Log(ctx context.Context, from, to int64) ([]churn.RevisionDescriptor, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	out, err := s.run(ctx, svnBinary,
		"log", "--xml", "--non-interactive",
		"-r", fmt.Sprintf("%d:%d", from, to),
		s.repo,
	)
	if err != nil {
		return nil, &churn.SourceError{Op: "svn log", Err: err}
	}

	descriptors, parseErr := parseSvnLog(out)
	if parseErr != nil {
		return nil, &churn.SourceError{Op: "svn log", Err: parseErr}
	}

	return descriptors, nil
}

// Diff runs "svn diff -c REV" and returns the raw unified-diff text. The
// ignore flags become svn diff extensions so whitespace-only and EOL-only
// differences never reach the parser.
func (s *SVN) Diff(ctx context.Context, revision int64, opts DiffOptions) (string, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	args := []string{"diff", "--non-interactive", "-c", strconv.FormatInt(revision, 10)}

	var extensions []string
	if opts.IgnoreWhitespace {
		extensions = append(extensions, "-w")
	}

	if opts.IgnoreEOL {
		extensions = append(extensions, "--ignore-eol-style")
	}

	if len(extensions) > 0 {
		args = append(args, "-x", strings.Join(extensions, " "))
	}

	args = append(args, s.repo)

	out, err := s.run(ctx, svnBinary, args...)
	if err != nil {
		return "", &churn.SourceError{Op: "svn diff", Revision: revision, Err: err}
	}

	return string(out), nil
}

func (s *SVN) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, s.timeout)
}

// svnLogXML mirrors the document emitted by "svn log --xml".
type svnLogXML struct {
	XMLName xml.Name         `xml:"log"`
	Entries []svnLogEntryXML `xml:"logentry"`
}

type svnLogEntryXML struct {
	Revision int64  `xml:"revision,attr"`
	Author   string `xml:"author"`
	Date     string `xml:"date"`
	Message  string `xml:"msg"`
}

// parseSvnLog decodes log XML into descriptors. Structurally malformed
// metadata is a source failure: revision identity is foundational and a
// silently wrong sequence would corrupt every downstream total.
func parseSvnLog(out []byte) ([]churn.RevisionDescriptor, error) {
	var doc svnLogXML

	err := xml.Unmarshal(out, &doc)
	if err != nil {
		return nil, fmt.Errorf("malformed log XML: %w", err)
	}

	descriptors := make([]churn.RevisionDescriptor, 0, len(doc.Entries))

	for _, entry := range doc.Entries {
		if entry.Revision <= 0 {
			return nil, fmt.Errorf("malformed log entry: revision %d", entry.Revision)
		}

		timestamp, parseErr := time.Parse(time.RFC3339Nano, entry.Date)
		if parseErr != nil && entry.Date != "" {
			return nil, fmt.Errorf("malformed log entry date %q: %w", entry.Date, parseErr)
		}

		descriptors = append(descriptors, churn.RevisionDescriptor{
			Number:    entry.Revision,
			Author:    entry.Author,
			Timestamp: timestamp,
			Message:   entry.Message,
		})
	}

	slices.SortFunc(descriptors, func(a, b churn.RevisionDescriptor) int {
		return int(a.Number - b.Number)
	})

	return descriptors, nil
}

// runCommand executes the command, capturing stdout. On failure the first
// stderr line is folded into the error for diagnosis.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s timed out: %w", name, ctxErr)
		}

		detail := firstLine(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, detail)
		}

		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}

	return s
}
