package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/state"
)

// RunStatus compares the files on disk with the hashes recorded at the last
// load. It does not load the knowledge base and never writes state.
func RunStatus(cmd *cobra.Command, args []string) error {
	start := time.Now()
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	summary := StatusSummary{
		Mode:          "status",
		DataDir:       cfg.DataDir,
		StateFilePath: filepath.Join(cfg.DataDir, state.StateFile),
	}

	st, err := state.Load(cfg.DataDir)
	if err != nil {
		if !IsCorruptStateError(err) {
			return fmt.Errorf("failed to load state: %w", err)
		}
		fmt.Fprintf(os.Stderr, "warning: corrupt state file detected (%v); treating all files as changed\n", err)
		summary.CorruptState = true
		st = state.NewState()
	}

	layout := artifacts.NewLayout(cfg.DataDir)
	current, err := fileutil.HashFiles(layout.Paths())
	if err != nil {
		return fmt.Errorf("failed to hash knowledge base files: %w", err)
	}
	for _, name := range artifacts.Names() {
		if _, ok := current[name]; !ok {
			summary.MissingFiles = append(summary.MissingFiles, name)
		}
	}

	summary.StateVersion = st.Version
	summary.Evaluator = st.Evaluator
	if !st.UpdatedAt.IsZero() {
		summary.LastLoaded = st.UpdatedAt.UTC().Format(time.RFC3339)
	}
	summary.Diseases = st.Diseases
	summary.Symptoms = st.Symptoms
	summary.Tracked = len(st.Artifacts)
	summary.ChangedFiles = st.ChangedArtifacts(current)
	summary.DeletedFiles = st.DeletedArtifacts(current)
	summary.Changed = len(summary.ChangedFiles)
	summary.Deleted = len(summary.DeletedFiles)
	summary.Clean = summary.Changed == 0 && summary.Deleted == 0 && !summary.CorruptState
	summary.DurationMS = time.Since(start).Milliseconds()

	return PrintStatusSummary(cmd.OutOrStdout(), summary, asJSON)
}
