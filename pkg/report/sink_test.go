package report_test

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
	"github.com/Sumatoshi-tech/revchurn/pkg/report"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSinkWritesStdoutAndFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "churn.csv")

	var stdout bytes.Buffer

	sink := report.NewSink([]report.Target{
		{Format: report.FormatConsole},
		{Format: report.FormatCSV, Path: csvPath},
	}, &stdout, discardLogger())

	err := sink.Write(sampleResult(), report.Options{PerRevision: true, NoColor: true})
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "Code churn report")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "revision,author,files_changed,lines_added,lines_removed")
}

func TestSinkFailedTargetDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "churn.json")
	badPath := filepath.Join(dir, "missing", "deep", "churn.csv")

	sink := report.NewSink([]report.Target{
		{Format: report.FormatCSV, Path: badPath},
		{Format: report.FormatJSON, Path: jsonPath},
	}, io.Discard, discardLogger())

	err := sink.Write(sampleResult(), report.Options{PerRevision: true})
	require.Error(t, err)

	var renderErr *churn.RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, string(report.FormatCSV), renderErr.Format)

	data, readErr := os.ReadFile(jsonPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `"totalLinesAdded": 17`)
}

func TestSinkFailureLeavesNoPartialFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	badPath := filepath.Join(dir, "missing", "churn.json")

	sink := report.NewSink([]report.Target{
		{Format: report.FormatJSON, Path: badPath},
	}, io.Discard, discardLogger())

	err := sink.Write(sampleResult(), report.Options{})
	require.Error(t, err)

	_, statErr := os.Stat(badPath)
	assert.True(t, os.IsNotExist(statErr))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no stray temp files")
}

func TestSinkHTMLTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "churn.html")

	sink := report.NewSink([]report.Target{
		{Format: report.FormatHTML, Path: htmlPath},
	}, io.Discard, discardLogger())

	require.NoError(t, sink.Write(sampleResult(), report.Options{PerRevision: true}))

	data, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Code Churn History")
}
