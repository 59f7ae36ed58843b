package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/morozRed/medkb/internal/engine"
	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/ingest"
)

type EditSummary struct {
	Mode       string   `json:"mode"`
	DataDir    string   `json:"data_dir"`
	Disease    string   `json:"disease"`
	Added      []string `json:"added"`
	DurationMS int64    `json:"duration_ms"`
}

type IngestSummary struct {
	Mode       string        `json:"mode"`
	DataDir    string        `json:"data_dir"`
	Source     string        `json:"source"`
	Result     ingest.Result `json:"result"`
	DurationMS int64         `json:"duration_ms"`
}

type StatusSummary struct {
	Mode          string   `json:"mode"`
	DataDir       string   `json:"data_dir"`
	Evaluator     string   `json:"evaluator,omitempty"`
	StateVersion  string   `json:"state_version"`
	LastLoaded    string   `json:"last_loaded,omitempty"`
	Diseases      int      `json:"diseases"`
	Symptoms      int      `json:"symptoms"`
	Tracked       int      `json:"tracked"`
	Changed       int      `json:"changed"`
	Deleted       int      `json:"deleted"`
	Clean         bool     `json:"clean"`
	DurationMS    int64    `json:"duration_ms"`
	ChangedFiles  []string `json:"changed_files,omitempty"`
	DeletedFiles  []string `json:"deleted_files,omitempty"`
	MissingFiles  []string `json:"missing_files,omitempty"`
	CorruptState  bool     `json:"corrupt_state,omitempty"`
	StateFilePath string   `json:"state_file"`
}

type DoctorSummary struct {
	Mode        string       `json:"mode"`
	Evaluator   string       `json:"evaluator"`
	Audit       engine.Audit `json:"audit"`
	Missing     []string     `json:"missing,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
	Healthy     bool         `json:"healthy"`
}

func PrintEditSummary(w io.Writer, summary EditSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(w, summary)
	}
	if len(summary.Added) == 0 {
		fmt.Fprintf(w, "%s: %s already lists every given symptom (no change)\n", summary.Mode, summary.Disease)
		return nil
	}
	fmt.Fprintf(w, "%s: %s <- %s (%s) duration=%dms\n",
		summary.Mode,
		summary.Disease,
		strings.Join(summary.Added, ", "),
		pluralize(len(summary.Added), "symptom"),
		summary.DurationMS,
	)
	return nil
}

func PrintIngestSummary(w io.Writer, summary IngestSummary) error {
	fmt.Fprintf(w, "ingest complete in %dms\n", summary.DurationMS)
	fmt.Fprintf(w, "source: %s\n", summary.Source)
	fmt.Fprintf(w, "rules: diseases=%d skipped_rows=%d\n", summary.Result.DiseasesProcessed, summary.Result.RowsSkipped)
	fmt.Fprintf(w, "vocabulary: symptoms=%d\n", summary.Result.SymptomsKnown)
	if len(summary.Result.SymptomsPreview) > 0 {
		fmt.Fprintf(w, "symptoms: %s\n", SummarizeList(summary.Result.SymptomsPreview, 10))
	}
	return nil
}

func PrintStatusSummary(w io.Writer, summary StatusSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(w, summary)
	}

	fmt.Fprintf(w, "%s: diseases=%d symptoms=%d tracked=%d changed=%d deleted=%d clean=%t duration=%dms\n",
		summary.Mode,
		summary.Diseases,
		summary.Symptoms,
		summary.Tracked,
		summary.Changed,
		summary.Deleted,
		summary.Clean,
		summary.DurationMS,
	)
	if summary.LastLoaded != "" {
		fmt.Fprintf(w, "last load: %s (evaluator=%s)\n", summary.LastLoaded, summary.Evaluator)
	}
	if summary.CorruptState {
		fmt.Fprintf(w, "state file is corrupt: %s\n", summary.StateFilePath)
	}
	if len(summary.ChangedFiles) > 0 {
		fmt.Fprintf(w, "changed files (%d): %s\n", len(summary.ChangedFiles), SummarizeList(summary.ChangedFiles, 8))
	}
	if len(summary.DeletedFiles) > 0 {
		fmt.Fprintf(w, "deleted files (%d): %s\n", len(summary.DeletedFiles), SummarizeList(summary.DeletedFiles, 8))
	}
	if len(summary.MissingFiles) > 0 {
		fmt.Fprintf(w, "missing files (%d): %s\n", len(summary.MissingFiles), SummarizeList(summary.MissingFiles, 8))
	}
	return nil
}

func SummarizeList(items []string, max int) string {
	if len(items) <= max {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(items[:max], ", "), len(items)-max)
}
