package output

import (
	"bytes"
	"fmt"
	"time"
)

// timeRound is the precision shown for elapsed times.
const timeRound = 10 * time.Millisecond

// PrettyFormatter renders a report with lipgloss styling for terminals.
type PrettyFormatter struct{}

// Format writes the styled report to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	header := fmt.Sprintf("%s %s\n%s %d   %s %d   %s %s",
		TitleStyle.Render("Classification report:"), r.Root,
		LabelStyle.Render("files:"), r.FilesProcessed,
		LabelStyle.Render("findings:"), len(r.Findings),
		LabelStyle.Render("elapsed:"), r.Elapsed.Round(timeRound))
	if r.FileErrors > 0 {
		header += "   " + ErrorStyle.Render(fmt.Sprintf("errors: %d", r.FileErrors))
	}
	w.WriteString(HeaderBox.Render(header))
	w.WriteString("\n")

	for _, finding := range r.Findings {
		fmt.Fprintf(w, "%s %s %s\n",
			SetStyle.Render(finding.SetName()),
			MutedStyle.Render("["+finding.Condition()+"]"),
			finding.FilePath)
	}
	return nil
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
