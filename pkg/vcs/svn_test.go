package vcs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

const sampleLogXML = `<?xml version="1.0" encoding="UTF-8"?>
<log>
<logentry revision="102">
<author>bob</author>
<date>2024-03-02T10:00:00.000000Z</date>
<msg>trim docs</msg>
</logentry>
<logentry revision="101">
<author>alice</author>
<date>2024-03-01T09:30:00.000000Z</date>
<msg>add feature</msg>
</logentry>
</log>`

func fakeRunner(out string, err error) (runnerFunc, *[][]string) {
	var calls [][]string

	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))

		return []byte(out), err
	}, &calls
}

func TestSVNLogParsesAndSorts(t *testing.T) {
	t.Parallel()

	source := NewSVN("https://svn.example.org/repo", 0)
	runner, _ := fakeRunner(sampleLogXML, nil)
	source.run = runner

	descriptors, err := source.Log(context.Background(), 100, 102)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, int64(101), descriptors[0].Number)
	assert.Equal(t, "alice", descriptors[0].Author)
	assert.Equal(t, "add feature", descriptors[0].Message)
	assert.Equal(t, int64(102), descriptors[1].Number)
	assert.Equal(t, 2024, descriptors[0].Timestamp.Year())
}

func TestSVNLogMalformedXML(t *testing.T) {
	t.Parallel()

	source := NewSVN("repo", 0)
	runner, _ := fakeRunner("svn: E170013: unable to connect", nil)
	source.run = runner

	_, err := source.Log(context.Background(), 1, 5)
	require.ErrorIs(t, err, churn.ErrSourceUnavailable)
}

func TestSVNLogCommandFailure(t *testing.T) {
	t.Parallel()

	source := NewSVN("repo", 0)
	runner, _ := fakeRunner("", errors.New("exit status 1"))
	source.run = runner

	_, err := source.Log(context.Background(), 1, 5)
	require.ErrorIs(t, err, churn.ErrSourceUnavailable)
}

func TestSVNLogRejectsNonPositiveRevision(t *testing.T) {
	t.Parallel()

	source := NewSVN("repo", 0)
	runner, _ := fakeRunner(`<log><logentry revision="0"><author>x</author></logentry></log>`, nil)
	source.run = runner

	_, err := source.Log(context.Background(), 1, 5)
	require.ErrorIs(t, err, churn.ErrSourceUnavailable)
}

func TestSVNDiffArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts DiffOptions
		want []string
	}{
		{
			name: "plain",
			opts: DiffOptions{},
			want: []string{"svn", "diff", "--non-interactive", "-c", "42", "repo"},
		},
		{
			name: "ignore whitespace",
			opts: DiffOptions{IgnoreWhitespace: true},
			want: []string{"svn", "diff", "--non-interactive", "-c", "42", "-x", "-w", "repo"},
		},
		{
			name: "ignore both",
			opts: DiffOptions{IgnoreWhitespace: true, IgnoreEOL: true},
			want: []string{"svn", "diff", "--non-interactive", "-c", "42", "-x", "-w --ignore-eol-style", "repo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			source := NewSVN("repo", 0)
			runner, calls := fakeRunner("diff text", nil)
			source.run = runner

			text, err := source.Diff(context.Background(), 42, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, "diff text", text)

			require.Len(t, *calls, 1)
			assert.Equal(t, tt.want, (*calls)[0])
		})
	}
}

func TestSVNDiffFailureCarriesRevision(t *testing.T) {
	t.Parallel()

	source := NewSVN("repo", time.Second)
	runner, _ := fakeRunner("", errors.New("network unreachable"))
	source.run = runner

	_, err := source.Diff(context.Background(), 7, DiffOptions{})
	require.ErrorIs(t, err, churn.ErrSourceUnavailable)

	var sourceErr *churn.SourceError
	require.ErrorAs(t, err, &sourceErr)
	assert.Equal(t, int64(7), sourceErr.Revision)
}
