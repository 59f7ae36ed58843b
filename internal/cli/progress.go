package cli

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ingestProgressReporter draws a spinner on stderr while a table is ingested.
// It stays silent when stderr is not a terminal or JSON output is requested.
type ingestProgressReporter struct {
	enabled bool
	label   string
	start   time.Time
	spinner int
	lastLen int
}

func newIngestProgressReporter(label string, asJSON bool) *ingestProgressReporter {
	stat, err := os.Stderr.Stat()
	enabled := err == nil && (stat.Mode()&os.ModeCharDevice) != 0 && !asJSON
	return &ingestProgressReporter{
		enabled: enabled,
		label:   label,
		start:   time.Now(),
	}
}

func (r *ingestProgressReporter) Update(disease string, count int) {
	if !r.enabled {
		return
	}
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	disease = strings.TrimSpace(disease)
	if len(disease) > 60 {
		disease = disease[:57] + "..."
	}
	r.printStatus(fmt.Sprintf("%s %s %d compiling %s", frame, r.label, count, disease))
}

func (r *ingestProgressReporter) Done(count int) {
	if !r.enabled {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	r.printStatus(fmt.Sprintf("%s complete (%d diseases in %s)", r.label, count, elapsed))
	fmt.Fprintln(os.Stderr)
}

func (r *ingestProgressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(os.Stderr, "\r%s", status)
}
