package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/fileutil"
)

func RunDoctor(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	audit, err := rt.engine.Audit()
	if err != nil {
		return fmt.Errorf("failed to audit knowledge base: %w", err)
	}

	summary := DoctorSummary{
		Mode:      "doctor",
		Evaluator: rt.engine.Backend(),
		Audit:     audit,
	}

	for _, name := range artifacts.Names() {
		if !audit.Artifacts[name] {
			summary.Missing = append(summary.Missing, name)
		}
	}
	if !audit.Artifacts[artifacts.RulesFile] {
		summary.Suggestions = append(summary.Suggestions, "run medkb ingest <table.csv> or medkb add-disease to create rules")
	}
	if len(audit.VocabularyGaps) > 0 {
		summary.Missing = append(summary.Missing, "vocabulary entries for rule symptoms")
		summary.Suggestions = append(summary.Suggestions, "add the missing symptoms to "+artifacts.VocabularyFile)
	}
	if len(audit.DuplicateBlocks) > 0 {
		summary.Suggestions = append(summary.Suggestions, "merge duplicate rules in "+artifacts.RulesFile+"; only the last one is used")
	}
	if len(audit.MissingHeaders) > 0 {
		summary.Suggestions = append(summary.Suggestions, "add header rules for: "+SummarizeList(audit.MissingHeaders, 5))
	}
	if len(audit.NonCanonicalRules) > 0 {
		summary.Suggestions = append(summary.Suggestions, "lowercase rule names in "+artifacts.RulesFile+": "+SummarizeList(audit.NonCanonicalRules, 5))
	}
	if len(audit.InvalidVocabulary) > 0 {
		summary.Suggestions = append(summary.Suggestions, "fix malformed entries in "+artifacts.VocabularyFile)
	}
	if len(audit.MissingDescriptions) > 0 || len(audit.MissingPrecautions) > 0 {
		summary.Suggestions = append(summary.Suggestions, "fill in descriptions and precautions for new diseases")
	}

	summary.Missing = fileutil.DedupeStrings(summary.Missing)
	sort.Strings(summary.Missing)
	summary.Suggestions = fileutil.DedupeStrings(summary.Suggestions)
	sort.Strings(summary.Suggestions)
	summary.Healthy = audit.Healthy

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, summary)
	}

	status := "issues"
	if summary.Healthy {
		status = "ok"
	}
	fmt.Fprintf(out, "doctor: %s\n", status)
	fmt.Fprintf(out, "knowledge base: diseases=%d symptoms=%d evaluator=%s\n", audit.Diseases, audit.Symptoms, summary.Evaluator)
	fmt.Fprintf(out, "files: rules=%t vocabulary=%t descriptions=%t precautions=%t\n",
		audit.Artifacts[artifacts.RulesFile],
		audit.Artifacts[artifacts.VocabularyFile],
		audit.Artifacts[artifacts.DescriptionFile],
		audit.Artifacts[artifacts.PrecautionFile],
	)
	if len(audit.VocabularyGaps) > 0 {
		diseases := make([]string, 0, len(audit.VocabularyGaps))
		for disease := range audit.VocabularyGaps {
			diseases = append(diseases, disease)
		}
		sort.Strings(diseases)
		for _, disease := range diseases {
			fmt.Fprintf(out, "vocabulary gap: %s needs %s\n", disease, strings.Join(audit.VocabularyGaps[disease], ", "))
		}
	}
	if len(audit.DuplicateBlocks) > 0 {
		fmt.Fprintf(out, "duplicate rules (%d): %s\n", len(audit.DuplicateBlocks), SummarizeList(audit.DuplicateBlocks, 8))
	}
	if len(audit.NonCanonicalRules) > 0 {
		fmt.Fprintf(out, "non-canonical rule names (%d): %s\n", len(audit.NonCanonicalRules), SummarizeList(audit.NonCanonicalRules, 8))
	}
	if len(audit.InvalidVocabulary) > 0 {
		fmt.Fprintf(out, "invalid vocabulary (%d): %s\n", len(audit.InvalidVocabulary), SummarizeList(audit.InvalidVocabulary, 8))
	}
	if len(audit.UnusedSymptoms) > 0 {
		fmt.Fprintf(out, "unused symptoms: %d\n", len(audit.UnusedSymptoms))
	}
	if len(summary.Missing) > 0 {
		fmt.Fprintf(out, "missing (%d): %s\n", len(summary.Missing), strings.Join(summary.Missing, ", "))
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Fprintf(out, "next: %s\n", suggestion)
	}
	return nil
}
