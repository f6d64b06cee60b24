// Package output formats classification job reports for the CLI. It
// provides a plain tab-separated formatter for scripting and a styled
// formatter for terminals.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/triage/pkg/triage/findings"
)

// Report is the renderable summary of one classification job.
type Report struct {
	// JobID is the job's identifier.
	JobID int64

	// Root is the scanned root path.
	Root string

	// FilesProcessed is the number of files processed.
	FilesProcessed int64

	// FileErrors is the number of files with an error result.
	FileErrors int64

	// Findings are the matches recorded during the run.
	Findings []*findings.Finding

	// Elapsed is the run's wall time.
	Elapsed time.Duration
}

// Formatter renders a report into a buffer.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
}

// ErrUnknownFormat indicates an unrecognized format name.
var ErrUnknownFormat = errors.New("unknown output format")

// New returns the formatter for the given name ("plain" or "pretty").
func New(format string) (Formatter, error) {
	switch format {
	case "plain":
		return &PlainFormatter{}, nil
	case "pretty":
		return &PrettyFormatter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
