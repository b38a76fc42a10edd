// Package report renders a finished aggregation result into the requested
// output representations and writes them to their destinations. Rendering
// is pure and deterministic: identical input and options always produce
// byte-identical output.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

// Format identifies an output representation.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatConsole  Format = "console"
	FormatYAML     Format = "yaml"
	FormatHTML     Format = "html"
)

// ParseFormat validates a format name from configuration.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatCSV, FormatJSON, FormatMarkdown, FormatConsole, FormatYAML, FormatHTML:
		return Format(strings.ToLower(name)), nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q", churn.ErrValidation, name)
	}
}

// Options controls rendering.
type Options struct {
	// PerRevision includes the per-revision breakdown; otherwise only
	// totals are rendered.
	PerRevision bool

	// NoColor disables ANSI colors in the console format.
	NoColor bool
}

// Render produces the textual representation of the result in one format.
// An unsupported format or a formatter failure is reported as a
// [churn.RenderError]; other requested formats are unaffected.
func Render(result churn.Result, format Format, opts Options) (string, error) {
	switch format {
	case FormatCSV:
		return renderCSV(result, opts)
	case FormatJSON:
		return renderJSON(result, opts)
	case FormatMarkdown:
		return renderMarkdown(result, opts), nil
	case FormatConsole:
		return renderConsole(result, opts), nil
	case FormatYAML:
		return renderYAML(result, opts)
	case FormatHTML:
		return renderHTML(result)
	default:
		return "", &churn.RenderError{Format: string(format), Err: fmt.Errorf("unsupported format")}
	}
}

// Document is the serialized shape shared by the JSON and YAML formats.
// Key order is fixed by the struct, so marshaling is deterministic.
type Document struct {
	TotalLinesAdded   int                `json:"totalLinesAdded"   yaml:"totalLinesAdded"`
	TotalLinesRemoved int                `json:"totalLinesRemoved" yaml:"totalLinesRemoved"`
	TotalFilesChanged int                `json:"totalFilesChanged" yaml:"totalFilesChanged"`
	Revisions         []DocumentRevision `json:"revisions"         yaml:"revisions"`
	SkippedRevisions  []DocumentSkipped  `json:"skippedRevisions,omitempty" yaml:"skippedRevisions,omitempty"`
}

// DocumentRevision is one per-revision entry in a serialized report.
type DocumentRevision struct {
	Revision     int64  `json:"revision"     yaml:"revision"`
	Author       string `json:"author"       yaml:"author"`
	FilesChanged int    `json:"filesChanged" yaml:"filesChanged"`
	LinesAdded   int    `json:"linesAdded"   yaml:"linesAdded"`
	LinesRemoved int    `json:"linesRemoved" yaml:"linesRemoved"`
}

// DocumentSkipped is one skipped revision in a serialized report.
type DocumentSkipped struct {
	Revision int64  `json:"revision" yaml:"revision"`
	Reason   string `json:"reason"   yaml:"reason"`
}

// ToDocument converts a result for serialization. The revisions array is
// present but empty when the per-revision breakdown is off.
func ToDocument(result churn.Result, opts Options) Document {
	doc := Document{
		TotalLinesAdded:   result.TotalAdded,
		TotalLinesRemoved: result.TotalRemoved,
		TotalFilesChanged: result.TotalFilesChanged,
		Revisions:         []DocumentRevision{},
	}

	if opts.PerRevision {
		for _, stat := range result.Revisions {
			doc.Revisions = append(doc.Revisions, DocumentRevision{
				Revision:     stat.Revision,
				Author:       stat.Author,
				FilesChanged: stat.FilesChanged,
				LinesAdded:   stat.LinesAdded,
				LinesRemoved: stat.LinesRemoved,
			})
		}
	}

	for _, skipped := range result.Skipped {
		doc.SkippedRevisions = append(doc.SkippedRevisions, DocumentSkipped{
			Revision: skipped.Revision,
			Reason:   skipped.Reason,
		})
	}

	return doc
}

func renderJSON(result churn.Result, opts Options) (string, error) {
	data, err := json.MarshalIndent(ToDocument(result, opts), "", "  ")
	if err != nil {
		return "", &churn.RenderError{Format: string(FormatJSON), Err: err}
	}

	return string(data) + "\n", nil
}

func renderYAML(result churn.Result, opts Options) (string, error) {
	data, err := yaml.Marshal(ToDocument(result, opts))
	if err != nil {
		return "", &churn.RenderError{Format: string(FormatYAML), Err: err}
	}

	return string(data), nil
}

// csvPerRevisionHeader and csvTotalsHeader fix the column order for both
// the CSV and Markdown formats.
var (
	csvPerRevisionHeader = []string{"revision", "author", "files_changed", "lines_added", "lines_removed"}
	csvTotalsHeader      = []string{"files_changed", "lines_added", "lines_removed"}
)

func renderCSV(result churn.Result, opts Options) (string, error) {
	var builder strings.Builder

	writer := csv.NewWriter(&builder)

	if opts.PerRevision {
		rows := [][]string{csvPerRevisionHeader}
		for _, stat := range result.Revisions {
			rows = append(rows, []string{
				strconv.FormatInt(stat.Revision, 10),
				stat.Author,
				strconv.Itoa(stat.FilesChanged),
				strconv.Itoa(stat.LinesAdded),
				strconv.Itoa(stat.LinesRemoved),
			})
		}

		if err := writer.WriteAll(rows); err != nil {
			return "", &churn.RenderError{Format: string(FormatCSV), Err: err}
		}

		return builder.String(), nil
	}

	rows := [][]string{
		csvTotalsHeader,
		{
			strconv.Itoa(result.TotalFilesChanged),
			strconv.Itoa(result.TotalAdded),
			strconv.Itoa(result.TotalRemoved),
		},
	}

	if err := writer.WriteAll(rows); err != nil {
		return "", &churn.RenderError{Format: string(FormatCSV), Err: err}
	}

	return builder.String(), nil
}

func renderMarkdown(result churn.Result, opts Options) string {
	var builder strings.Builder

	if opts.PerRevision {
		builder.WriteString("| Revision | Author | Files Changed | Lines Added | Lines Removed |\n")
		builder.WriteString("|---:|---|---:|---:|---:|\n")

		for _, stat := range result.Revisions {
			fmt.Fprintf(&builder, "| %d | %s | %d | %d | %d |\n",
				stat.Revision, stat.Author, stat.FilesChanged, stat.LinesAdded, stat.LinesRemoved)
		}

		fmt.Fprintf(&builder, "| **Total** | | **%d** | **%d** | **%d** |\n",
			result.TotalFilesChanged, result.TotalAdded, result.TotalRemoved)
	} else {
		builder.WriteString("**Churn summary**\n\n")
		fmt.Fprintf(&builder, "- Lines added: %d\n", result.TotalAdded)
		fmt.Fprintf(&builder, "- Lines removed: %d\n", result.TotalRemoved)
		fmt.Fprintf(&builder, "- Files changed: %d\n", result.TotalFilesChanged)
	}

	if len(result.Extensions) > 0 {
		builder.WriteString("\n**By language**\n\n")
		builder.WriteString("| Language | Extension | Files | Added | Removed |\n")
		builder.WriteString("|---|---|---:|---:|---:|\n")

		for _, ext := range result.Extensions {
			fmt.Fprintf(&builder, "| %s | %s | %d | %d | %d |\n",
				languageLabel(ext.Extension), displayExtension(ext.Extension),
				ext.FilesChanged, ext.LinesAdded, ext.LinesRemoved)
		}
	}

	if len(result.Skipped) > 0 {
		builder.WriteString("\n**Skipped revisions**\n\n")

		for _, skipped := range result.Skipped {
			fmt.Fprintf(&builder, "- r%d: %s\n", skipped.Revision, skipped.Reason)
		}
	}

	return builder.String()
}
