package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

func renderConsole(result churn.Result, opts Options) string {
	var builder strings.Builder

	added := color.New(color.FgGreen).SprintfFunc()
	removed := color.New(color.FgRed).SprintfFunc()
	heading := color.New(color.Bold).SprintfFunc()

	if opts.NoColor {
		plain := fmt.Sprintf
		added, removed, heading = plain, plain, plain
	}

	builder.WriteString(heading("Code churn report"))
	builder.WriteString("\n\n")
	fmt.Fprintf(&builder, "  %s  %s  %s\n\n",
		added("+%s lines", humanize.Comma(int64(result.TotalAdded))),
		removed("-%s lines", humanize.Comma(int64(result.TotalRemoved))),
		fmt.Sprintf("%s files changed", humanize.Comma(int64(result.TotalFilesChanged))))

	if opts.PerRevision && len(result.Revisions) > 0 {
		writer := table.NewWriter()
		writer.SetStyle(table.StyleLight)
		writer.AppendHeader(table.Row{"Revision", "Author", "Files", "Added", "Removed"})
		writer.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Revision", Align: text.AlignRight},
			{Name: "Files", Align: text.AlignRight},
			{Name: "Added", Align: text.AlignRight},
			{Name: "Removed", Align: text.AlignRight},
		})

		for _, stat := range result.Revisions {
			writer.AppendRow(table.Row{
				stat.Revision, stat.Author, stat.FilesChanged, stat.LinesAdded, stat.LinesRemoved,
			})
		}

		writer.AppendFooter(table.Row{
			"Total", "", result.TotalFilesChanged, result.TotalAdded, result.TotalRemoved,
		})

		builder.WriteString(writer.Render())
		builder.WriteString("\n")
	}

	if len(result.Extensions) > 0 {
		builder.WriteString("\n")
		builder.WriteString(heading("By language"))
		builder.WriteString("\n")

		writer := table.NewWriter()
		writer.SetStyle(table.StyleLight)
		writer.AppendHeader(table.Row{"Language", "Extension", "Files", "Added", "Removed"})
		writer.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Files", Align: text.AlignRight},
			{Name: "Added", Align: text.AlignRight},
			{Name: "Removed", Align: text.AlignRight},
		})

		for _, ext := range result.Extensions {
			writer.AppendRow(table.Row{
				languageLabel(ext.Extension), displayExtension(ext.Extension),
				ext.FilesChanged, ext.LinesAdded, ext.LinesRemoved,
			})
		}

		builder.WriteString(writer.Render())
		builder.WriteString("\n")
	}

	if len(result.Skipped) > 0 {
		builder.WriteString("\n")
		builder.WriteString(heading("Skipped revisions"))
		builder.WriteString("\n")

		for _, skipped := range result.Skipped {
			fmt.Fprintf(&builder, "  r%d: %s\n", skipped.Revision, skipped.Reason)
		}
	}

	return builder.String()
}

// languageLabel maps a file extension to a language name. Unknown
// extensions and extensionless files are labeled "Other".
func languageLabel(extension string) string {
	if extension == "" {
		return "Other"
	}

	candidates := enry.GetLanguagesByExtension("x."+extension, nil, nil)
	if len(candidates) == 0 {
		return "Other"
	}

	return candidates[0]
}

func displayExtension(extension string) string {
	if extension == "" {
		return "(none)"
	}

	return "." + extension
}
