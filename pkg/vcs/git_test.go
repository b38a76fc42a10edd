package vcs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/revchurn/pkg/vcs"
)

// commitFiles writes the given files into the worktree and commits them on
// top of HEAD, or as the root commit when the repository is empty.
func commitFiles(t *testing.T, repo *git2go.Repository, message string, files map[string]string) {
	t.Helper()

	idx, err := repo.Index()
	require.NoError(t, err)

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(repo.Workdir(), name), []byte(content), 0o644))
		require.NoError(t, idx.AddByPath(name))
	}

	treeID, err := idx.WriteTree()
	require.NoError(t, err)
	require.NoError(t, idx.Write())

	tree, err := repo.LookupTree(treeID)
	require.NoError(t, err)
	defer tree.Free()

	sig := &git2go.Signature{Name: "alice", Email: "alice@example.com", When: time.Now()}

	var parents []*git2go.Commit

	head, err := repo.Head()
	if err == nil {
		parent, lookupErr := repo.LookupCommit(head.Target())
		require.NoError(t, lookupErr)
		defer parent.Free()

		parents = append(parents, parent)
	}

	_, err = repo.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(t, err)
}

// A change that only swaps line endings must vanish from the diff when EOL
// differences are ignored, while real content changes stay.
func TestGitDiffIgnoresEOLChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)
	defer repo.Free()

	commitFiles(t, repo, "initial", map[string]string{"a.txt": "alpha\n"})
	commitFiles(t, repo, "crlf plus addition", map[string]string{
		"a.txt": "alpha\r\n",
		"b.txt": "bravo\n",
	})

	source, err := vcs.OpenGit(dir)
	require.NoError(t, err)
	defer source.Close()

	require.EqualValues(t, 2, source.MaxRevision())

	ctx := context.Background()

	plain, err := source.Diff(ctx, 2, vcs.DiffOptions{})
	require.NoError(t, err)
	assert.Contains(t, plain, "-alpha", "line-ending change must show without the flag")

	ignored, err := source.Diff(ctx, 2, vcs.DiffOptions{IgnoreEOL: true})
	require.NoError(t, err)
	assert.Contains(t, ignored, "+bravo")
	assert.NotContains(t, ignored, "-alpha")
}
