package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
)

// Target pairs a format with its destination. An empty Path or "-" means
// standard output.
type Target struct {
	Format Format
	Path   string
}

// Sink renders a result into every requested target. A failure in one
// target does not prevent the others from being written; Write returns
// the joined errors after attempting all targets.
type Sink struct {
	targets []Target
	stdout  io.Writer
	logger  *slog.Logger
}

// NewSink builds a sink for the given targets. Console and file output
// for the same run are both supported.
func NewSink(targets []Target, stdout io.Writer, logger *slog.Logger) *Sink {
	if stdout == nil {
		stdout = os.Stdout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Sink{targets: targets, stdout: stdout, logger: logger}
}

// Write renders and delivers every target. File targets are written
// all-or-nothing via a temporary file so a render failure never leaves a
// truncated report behind.
func (s *Sink) Write(result churn.Result, opts Options) error {
	var errs []error

	for _, target := range s.targets {
		if err := s.writeOne(result, target, opts); err != nil {
			s.logger.Error("report target failed",
				slog.String("format", string(target.Format)),
				slog.String("path", target.Path),
				slog.Any("error", err))

			errs = append(errs, err)

			continue
		}

		s.logger.Debug("report target written",
			slog.String("format", string(target.Format)),
			slog.String("path", target.Path))
	}

	return errors.Join(errs...)
}

func (s *Sink) writeOne(result churn.Result, target Target, opts Options) error {
	rendered, err := Render(result, target.Format, opts)
	if err != nil {
		return err
	}

	if target.Path == "" || target.Path == "-" {
		if _, err := io.WriteString(s.stdout, rendered); err != nil {
			return &churn.RenderError{Format: string(target.Format), Err: fmt.Errorf("write stdout: %w", err)}
		}

		return nil
	}

	if err := writeFileAtomic(target.Path, []byte(rendered)); err != nil {
		return &churn.RenderError{Format: string(target.Format), Err: err}
	}

	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".revchurn-report-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("move report into place: %w", err)
	}

	return nil
}
