package vcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// DiffCache wraps a DiffSource with an on-disk cache of raw diff text,
// lz4-compressed. Diff text for a committed revision never changes, so a
// hit is always valid. Entries are keyed by (repo, revision, ignore flags):
// each repository gets its own subdirectory so several repositories can
// share one cache directory, and the ignore flags are part of the entry
// name because they change what the source returns.
type DiffCache struct {
	dir    string
	source DiffSource
	logger *slog.Logger
}

// NewDiffCache creates the per-repository cache directory if needed and
// wraps the source. The repo identifier (URL or path) selects the
// subdirectory; it is hashed so it needs no sanitizing.
func NewDiffCache(dir, repo string, source DiffSource, logger *slog.Logger) (*DiffCache, error) {
	sum := sha256.Sum256([]byte(repo))
	repoDir := filepath.Join(dir, hex.EncodeToString(sum[:8]))

	err := os.MkdirAll(repoDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create diff cache dir: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &DiffCache{dir: repoDir, source: source, logger: logger}, nil
}

// Diff returns cached diff text when present, otherwise fetches from the
// wrapped source and stores the result. A failed cache write is logged and
// otherwise ignored; the fetched text is still returned.
func (c *DiffCache) Diff(ctx context.Context, revision int64, opts DiffOptions) (string, error) {
	path := c.entryPath(revision, opts)

	text, err := readCompressed(path)
	if err == nil {
		return text, nil
	}

	if !os.IsNotExist(err) {
		c.logger.Warn("diff cache read failed", "path", path, "error", err)
	}

	text, err = c.source.Diff(ctx, revision, opts)
	if err != nil {
		return "", err
	}

	writeErr := writeCompressed(path, text)
	if writeErr != nil {
		c.logger.Warn("diff cache write failed", "path", path, "error", writeErr)
	}

	return text, nil
}

func (c *DiffCache) entryPath(revision int64, opts DiffOptions) string {
	name := fmt.Sprintf("r%d_w%d_e%d.diff.lz4",
		revision, boolBit(opts.IgnoreWhitespace), boolBit(opts.IgnoreEOL))

	return filepath.Join(c.dir, name)
}

func readCompressed(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	data, err := io.ReadAll(lz4.NewReader(file))
	if err != nil {
		return "", fmt.Errorf("decompress %s: %w", path, err)
	}

	return string(data), nil
}

// writeCompressed writes via a temp file plus rename so a crashed run
// never leaves a truncated cache entry behind.
func writeCompressed(path, text string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}

	writer := lz4.NewWriter(tmp)

	_, writeErr := writer.Write([]byte(text))
	closeErr := writer.Close()
	fileErr := tmp.Close()

	if writeErr != nil || closeErr != nil || fileErr != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("write cache entry: %w", firstErr(writeErr, closeErr, fileErr))
	}

	renameErr := os.Rename(tmp.Name(), path)
	if renameErr != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("install cache entry: %w", renameErr)
	}

	return nil
}

func boolBit(b bool) int {
	if b {
		return 1
	}

	return 0
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}
