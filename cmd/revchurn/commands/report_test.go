package commands

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
	configpkg "github.com/Sumatoshi-tech/revchurn/pkg/config"
	"github.com/Sumatoshi-tech/revchurn/pkg/observability"
	"github.com/Sumatoshi-tech/revchurn/pkg/pipeline"
)

type capturedRun struct {
	cfg  *configpkg.Config
	opts pipeline.Options
}

func fakeExecutor(captured *capturedRun, result churn.Result) churnExecutor {
	return func(
		_ context.Context, cfg *configpkg.Config, opts pipeline.Options, _ observability.Providers,
	) (churn.Result, error) {
		captured.cfg = cfg
		captured.opts = opts

		return result, nil
	}
}

func sampleRunResult() churn.Result {
	return churn.Result{
		TotalAdded:        10,
		TotalRemoved:      2,
		TotalFilesChanged: 1,
		Revisions: []churn.RevisionStat{
			{Revision: 101, Author: "alice", FilesChanged: 1, LinesAdded: 10, LinesRemoved: 2},
		},
	}
}

func execute(t *testing.T, exec churnExecutor, args ...string) (string, error) {
	t.Helper()

	cmd := newReportCommandWithDeps(exec)

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestReportCommandWiresOptions(t *testing.T) {
	t.Parallel()

	var captured capturedRun

	out, err := execute(t, fakeExecutor(&captured, sampleRunResult()),
		"--repo", "https://svn.example.org/repo",
		"--from", "100", "--to", "200",
		"--author", "alice",
		"--ext", "go,ts",
		"--exclude-ext", "md",
		"--exclude-path", "vendor/**",
		"--ignore-whitespace",
		"--workers", "8",
		"--on-error", "skip",
		"--per-revision",
		"--no-color",
	)
	require.NoError(t, err)

	require.NotNil(t, captured.cfg)
	assert.Equal(t, "svn", captured.cfg.Source.Type)
	assert.Equal(t, "https://svn.example.org/repo", captured.cfg.Source.Repository)
	assert.Equal(t, 8, captured.cfg.Pipeline.Workers)

	assert.Equal(t, int64(100), captured.opts.From)
	assert.Equal(t, int64(200), captured.opts.To)
	assert.Equal(t, "alice", captured.opts.Criteria.Author)
	assert.Equal(t, []string{"go", "ts"}, captured.opts.Criteria.IncludeExts)
	assert.Equal(t, []string{"md"}, captured.opts.Criteria.ExcludeExts)
	assert.Equal(t, []string{"vendor/**"}, captured.opts.Criteria.ExcludeGlobs)
	assert.True(t, captured.opts.Criteria.IgnoreWhitespace)
	assert.False(t, captured.opts.Criteria.IgnoreEOL)
	assert.Equal(t, pipeline.PolicySkip, captured.opts.Policy)

	// Default format is the console summary on stdout.
	assert.Contains(t, out, "+10 lines")
	assert.Contains(t, out, "alice")
}

func TestReportCommandRequiresRepository(t *testing.T) {
	t.Parallel()

	var captured capturedRun

	_, err := execute(t, fakeExecutor(&captured, churn.Result{}),
		"--from", "1", "--to", "2",
	)
	require.ErrorIs(t, err, configpkg.ErrMissingRepository)
	assert.Nil(t, captured.cfg, "pipeline must not run")
}

func TestReportCommandRequiresRange(t *testing.T) {
	t.Parallel()

	_, err := execute(t, fakeExecutor(&capturedRun{}, churn.Result{}),
		"--repo", "https://svn.example.org/repo",
	)
	require.ErrorIs(t, err, ErrRangeRequired)
}

func TestReportCommandGitDefaultsToHead(t *testing.T) {
	t.Parallel()

	var captured capturedRun

	_, err := execute(t, fakeExecutor(&captured, churn.Result{}),
		"--repo", "/srv/repos/app", "--vcs", "git", "--from", "1",
	)
	require.NoError(t, err)
	assert.Equal(t, "git", captured.cfg.Source.Type)
	assert.Equal(t, int64(0), captured.opts.To, "zero passes through so the source resolves HEAD")
}

func TestReportCommandRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := execute(t, fakeExecutor(&capturedRun{}, churn.Result{}),
		"--repo", "https://svn.example.org/repo",
		"--from", "1", "--to", "2",
		"--format", "xml",
	)
	require.ErrorIs(t, err, churn.ErrValidation)
}

func TestReportCommandRejectsExtraOutputs(t *testing.T) {
	t.Parallel()

	_, err := execute(t, fakeExecutor(&capturedRun{}, churn.Result{}),
		"--repo", "https://svn.example.org/repo",
		"--from", "1", "--to", "2",
		"--format", "csv",
		"--output", "a.csv", "--output", "b.csv",
	)
	require.ErrorIs(t, err, churn.ErrValidation)
}

func TestReportCommandRejectsBadPolicy(t *testing.T) {
	t.Parallel()

	_, err := execute(t, fakeExecutor(&capturedRun{}, churn.Result{}),
		"--repo", "https://svn.example.org/repo",
		"--from", "1", "--to", "2",
		"--on-error", "retry",
	)
	require.ErrorIs(t, err, configpkg.ErrInvalidOnError)
}

func TestReportCommandWritesFileTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := dir + "/churn.csv"

	out, err := execute(t, fakeExecutor(&capturedRun{}, sampleRunResult()),
		"--repo", "https://svn.example.org/repo",
		"--from", "1", "--to", "2",
		"--format", "csv",
		"--output", csvPath,
		"--per-revision",
	)
	require.NoError(t, err)
	assert.NotContains(t, out, "revision,author")

	data, readErr := os.ReadFile(csvPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "101,alice,1,10,2")
}
