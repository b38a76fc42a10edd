package vcs

import (
	"context"
	"fmt"
	"slices"
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

// GitSource adapts a local git repository to the revision-numbered source
// contracts. The first-parent chain from the root commit to HEAD is
// numbered 1..N, oldest first, so a git history can flow through the same
// pipeline as a Subversion one.
type GitSource struct {
	repo    *git2go.Repository
	commits []*git2go.Commit
}

// OpenGit opens the repository at path and indexes its first-parent chain.
func OpenGit(path string) (*GitSource, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, &churn.SourceError{Op: "open git repository", Err: err}
	}

	commits, err := firstParentChain(repo)
	if err != nil {
		repo.Free()

		return nil, &churn.SourceError{Op: "walk git history", Err: err}
	}

	return &GitSource{repo: repo, commits: commits}, nil
}

// Close releases the underlying libgit2 resources.
func (g *GitSource) Close() {
	for _, commit := range g.commits {
		commit.Free()
	}

	g.commits = nil

	if g.repo != nil {
		g.repo.Free()
		g.repo = nil
	}
}

// MaxRevision returns the highest revision number available, which is the
// length of the first-parent chain.
func (g *GitSource) MaxRevision() int64 {
	return int64(len(g.commits))
}

// Log returns descriptors for the numbered commits within [from, to],
// clamped to the available history.
func (g *GitSource) Log(_ context.Context, from, to int64) ([]churn.RevisionDescriptor, error) {
	if from > int64(len(g.commits)) {
		return []churn.RevisionDescriptor{}, nil
	}

	to = min(to, int64(len(g.commits)))

	descriptors := make([]churn.RevisionDescriptor, 0, to-from+1)

	for number := from; number <= to; number++ {
		commit := g.commits[number-1]
		author := commit.Author()

		descriptors = append(descriptors, churn.RevisionDescriptor{
			Number:    number,
			Author:    author.Name,
			Timestamp: author.When,
			Message:   strings.TrimRight(commit.Message(), "\n"),
		})
	}

	return descriptors, nil
}

// Diff produces unified-diff text for the numbered commit against its
// first parent. The ignore flags map onto libgit2 diff flags, matching the
// contract that whitespace-only and EOL-only differences are omitted
// before parsing.
func (g *GitSource) Diff(_ context.Context, revision int64, opts DiffOptions) (string, error) {
	if revision < 1 || revision > int64(len(g.commits)) {
		return "", &churn.SourceError{
			Op:       "git diff",
			Revision: revision,
			Err:      fmt.Errorf("revision out of range 1..%d", len(g.commits)),
		}
	}

	commit := g.commits[revision-1]

	newTree, err := commit.Tree()
	if err != nil {
		return "", &churn.SourceError{Op: "git diff", Revision: revision, Err: err}
	}
	defer newTree.Free()

	var oldTree *git2go.Tree

	if commit.ParentCount() > 0 {
		parent := commit.Parent(0)
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return "", &churn.SourceError{Op: "git diff", Revision: revision, Err: err}
		}
		defer oldTree.Free()
	}

	diffOpts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return "", &churn.SourceError{Op: "git diff", Revision: revision, Err: err}
	}

	if opts.IgnoreWhitespace {
		diffOpts.Flags |= git2go.DiffIgnoreWhitespace
	}

	if opts.IgnoreEOL {
		diffOpts.Flags |= git2go.DiffIgnoreWhitespaceEOL
	}

	diff, err := g.repo.DiffTreeToTree(oldTree, newTree, &diffOpts)
	if err != nil {
		return "", &churn.SourceError{Op: "git diff", Revision: revision, Err: err}
	}
	defer diff.Free()

	return renderDiff(diff, revision)
}

// renderDiff concatenates per-delta patch text into one unified-diff
// document for the revision.
func renderDiff(diff *git2go.Diff, revision int64) (string, error) {
	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return "", &churn.SourceError{Op: "git diff", Revision: revision, Err: err}
	}

	var builder strings.Builder

	for i := range numDeltas {
		patch, patchErr := diff.Patch(i)
		if patchErr != nil {
			return "", &churn.SourceError{Op: "git diff", Revision: revision, Err: patchErr}
		}

		text, strErr := patch.String()

		freeErr := patch.Free()

		if strErr != nil {
			return "", &churn.SourceError{Op: "git diff", Revision: revision, Err: strErr}
		}

		if freeErr != nil {
			return "", &churn.SourceError{Op: "git diff", Revision: revision, Err: freeErr}
		}

		builder.WriteString(text)
	}

	return builder.String(), nil
}

// firstParentChain walks from HEAD along first parents and returns the
// chain oldest first.
func firstParentChain(repo *git2go.Repository) ([]*git2go.Commit, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}
	defer head.Free()

	commit, err := repo.LookupCommit(head.Target())
	if err != nil {
		return nil, fmt.Errorf("lookup HEAD commit: %w", err)
	}

	var chain []*git2go.Commit

	for commit != nil {
		chain = append(chain, commit)

		if commit.ParentCount() == 0 {
			break
		}

		commit = commit.Parent(0)
	}

	slices.Reverse(chain)

	return chain, nil
}
