package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter renders a report as a simple tab-separated table,
// suitable for scripting and piping. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	fmt.Fprintf(w, "job %d: %d files processed, %d errors, %d findings in %s\n",
		r.JobID, r.FilesProcessed, r.FileErrors, len(r.Findings), r.Elapsed.Round(timeRound))

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	if _, err := tw.Write([]byte("SET\tCONDITION\tPATH\n")); err != nil {
		return err
	}
	for _, finding := range r.Findings {
		row := finding.SetName() + "\t" + finding.Condition() + "\t" + finding.FilePath + "\n"
		if _, err := tw.Write([]byte(row)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
