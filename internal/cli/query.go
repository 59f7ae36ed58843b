package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/matcher"
	"github.com/morozRed/medkb/internal/search"
)

func RunDiagnose(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	fromFile, err := OptionalStringFlag(cmd, "from-file")
	if err != nil {
		return err
	}

	symptoms := splitArgs(args)
	if fromFile != "" {
		fileSymptoms, err := LoadSymptomFile(fromFile)
		if err != nil {
			return err
		}
		symptoms = append(symptoms, fileSymptoms...)
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	diagnosis, err := rt.engine.Diagnose(symptoms)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, diagnosis)
	}

	switch diagnosis.Mode {
	case matcher.ModeNone:
		fmt.Fprintln(out, "no diseases detected, please add more symptoms")
	case matcher.ModeExact:
		fmt.Fprintf(out, "diagnosis (%s):\n", diagnosis.Evaluator)
	case matcher.ModeSubsetProbe:
		fmt.Fprintf(out, "possible diseases (%d):\n", len(diagnosis.Candidates))
	}
	for i, detail := range diagnosis.Details {
		candidate := diagnosis.Candidates[i]
		fmt.Fprintf(out, "- %s [%d/%d symptoms]\n", detail.Name, candidate.Matched, candidate.Required)
		fmt.Fprintf(out, "  %s\n", detail.Description)
		if len(detail.Precautions) > 0 {
			fmt.Fprintf(out, "  precautions: %s\n", strings.Join(detail.Precautions, "; "))
		}
	}
	if len(diagnosis.Remaining) > 0 {
		fmt.Fprintf(out, "also ask about: %s\n", strings.Join(diagnosis.Remaining, ", "))
	}
	if len(diagnosis.Unknown) > 0 {
		fmt.Fprintf(out, "unknown symptoms: %s\n", strings.Join(diagnosis.Unknown, ", "))
	}
	return nil
}

func RunSymptoms(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	limit, err := OptionalIntFlag(cmd, "limit", 10)
	if err != nil {
		return err
	}
	if limit < 1 {
		return fmt.Errorf("--limit must be >= 1")
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		symptoms := rt.engine.Symptoms()
		if asJSON {
			return fileutil.PrintJSON(out, map[string]any{"symptoms": symptoms})
		}
		for _, symptom := range symptoms {
			fmt.Fprintln(out, symptom)
		}
		return nil
	}

	matches := rt.engine.Search(args[0], search.KindSymptom, limit)
	if asJSON {
		return fileutil.PrintJSON(out, map[string]any{
			"query":   args[0],
			"matches": matches,
		})
	}
	if len(matches) == 0 {
		return fmt.Errorf("no symptom matches %q", args[0])
	}
	fmt.Fprintf(out, "symptom matches for %q (%d)\n", args[0], len(matches))
	for _, match := range matches {
		fmt.Fprintf(out, "- %s (%.3f)\n", match.Key, match.Score)
	}
	return nil
}

func RunDiseases(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		detail, ok := rt.engine.Detail(args[0])
		if !ok {
			return fmt.Errorf("disease %q not found", args[0])
		}
		if asJSON {
			return fileutil.PrintJSON(out, detail)
		}
		fmt.Fprintf(out, "%s (%s)\n", detail.Name, detail.Key)
		required, _ := rt.engine.Snapshot().KB.Required(detail.Key)
		fmt.Fprintf(out, "symptoms: %s\n", strings.Join(required.Sorted(), ", "))
		fmt.Fprintf(out, "description: %s\n", detail.Description)
		for _, precaution := range detail.Precautions {
			fmt.Fprintf(out, "- %s\n", precaution)
		}
		return nil
	}

	diseases := rt.engine.Diseases()
	if asJSON {
		return fileutil.PrintJSON(out, map[string]any{"diseases": diseases})
	}
	for _, disease := range diseases {
		fmt.Fprintf(out, "%s: %s\n", disease.Key, strings.Join(disease.Symptoms, ", "))
	}
	return nil
}
