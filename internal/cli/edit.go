package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/mutator"
	"github.com/morozRed/medkb/internal/normalize"
)

func RunAddSymptom(cmd *cobra.Command, args []string) error {
	start := time.Now()
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	disease := args[0]
	symptoms := splitArgs(args[1:])
	var added []string
	if len(symptoms) == 1 {
		changed, err := rt.engine.AddSymptom(disease, symptoms[0])
		if err != nil {
			return err
		}
		if changed {
			added = []string{normalize.Key(symptoms[0])}
		}
	} else {
		added, err = rt.engine.AddSymptoms(disease, symptoms)
		if err != nil {
			return err
		}
	}

	return PrintEditSummary(cmd.OutOrStdout(), EditSummary{
		Mode:       "add-symptom",
		DataDir:    rt.cfg.DataDir,
		Disease:    normalize.Key(disease),
		Added:      added,
		DurationMS: time.Since(start).Milliseconds(),
	}, asJSON)
}

func RunAddDisease(cmd *cobra.Command, args []string) error {
	start := time.Now()
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	symptoms, err := OptionalListFlag(cmd, "symptoms")
	if err != nil {
		return err
	}
	precautions, err := OptionalListFlag(cmd, "precautions")
	if err != nil {
		return err
	}
	description, err := OptionalStringFlag(cmd, "description")
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	key, err := rt.engine.AddDisease(mutator.NewDisease{
		Name:        args[0],
		Description: description,
		Precautions: precautions,
		Symptoms:    symptoms,
	})
	if err != nil {
		return err
	}

	return PrintEditSummary(cmd.OutOrStdout(), EditSummary{
		Mode:       "add-disease",
		DataDir:    rt.cfg.DataDir,
		Disease:    key,
		Added:      normalize.Keys(symptoms),
		DurationMS: time.Since(start).Milliseconds(),
	}, asJSON)
}

func RunIngest(cmd *cobra.Command, args []string) error {
	start := time.Now()
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	progress := newIngestProgressReporter("ingest", asJSON)
	result, err := rt.engine.Ingest(f, progress)
	if err != nil {
		return err
	}

	summary := IngestSummary{
		Mode:       "ingest",
		DataDir:    rt.cfg.DataDir,
		Source:     args[0],
		Result:     result,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if asJSON {
		return fileutil.PrintJSON(cmd.OutOrStdout(), summary)
	}
	return PrintIngestSummary(cmd.OutOrStdout(), summary)
}
