package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "medkb",
		Short: "Rule-based disease diagnosis over an editable knowledge base",
		Long: `medkb matches reported symptoms against a set of disease rules kept in
plain files: a CLIPS-style rule file, a symptom vocabulary and two CSV tables
with descriptions and precautions.

The knowledge base can be extended from the command line, over HTTP, or by
ingesting a disease/symptom CSV table. Files are read from --data-dir.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./medkb.yaml if present)")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding the knowledge base files")
	rootCmd.PersistentFlags().String("evaluator", "", "Rule evaluator: native|mangle")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")

	// Query Commands
	diagnoseCmd := &cobra.Command{
		Use:   "diagnose <symptom>...",
		Short: "Diagnose from a list of symptoms",
		Long: `Symptoms may be given as arguments, comma-separated, or one per line in
a file passed with --from-file.`,
		RunE: RunDiagnose,
	}
	diagnoseCmd.Flags().String("from-file", "", "Read symptoms from a file, one per line")
	diagnoseCmd.Flags().Bool("json", false, "Print machine-readable diagnosis")

	symptomsCmd := &cobra.Command{
		Use:   "symptoms [query]",
		Short: "List known symptoms, or rank them against a query",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunSymptoms,
	}
	symptomsCmd.Flags().Int("limit", 10, "Maximum number of matches for a query")
	symptomsCmd.Flags().Bool("json", false, "Print machine-readable symptom list")

	diseasesCmd := &cobra.Command{
		Use:   "diseases [name]",
		Short: "List diseases, or show one disease in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunDiseases,
	}
	diseasesCmd.Flags().Bool("json", false, "Print machine-readable disease list")

	// Edit Commands
	addSymptomCmd := &cobra.Command{
		Use:   "add-symptom <disease> <symptom>...",
		Short: "Add symptoms to an existing disease rule",
		Args:  cobra.MinimumNArgs(2),
		RunE:  RunAddSymptom,
	}
	addSymptomCmd.Flags().Bool("json", false, "Print machine-readable summary")

	addDiseaseCmd := &cobra.Command{
		Use:   "add-disease <name>",
		Short: "Register a new disease with its symptoms, description and precautions",
		Args:  cobra.ExactArgs(1),
		RunE:  RunAddDisease,
	}
	addDiseaseCmd.Flags().StringSlice("symptoms", nil, "Symptoms the disease requires (comma-separated)")
	addDiseaseCmd.Flags().String("description", "", "Free-text description")
	addDiseaseCmd.Flags().StringSlice("precautions", nil, "Precautions (comma-separated)")
	addDiseaseCmd.Flags().Bool("json", false, "Print machine-readable summary")

	ingestCmd := &cobra.Command{
		Use:   "ingest <table.csv>",
		Short: "Merge a disease/symptom CSV table into the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE:  RunIngest,
	}
	ingestCmd.Flags().Bool("json", false, "Print machine-readable summary")

	// Inspect Commands
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which knowledge base files changed since the last load",
		RunE:  RunStatus,
	}
	statusCmd.Flags().Bool("json", false, "Print machine-readable status output")

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the knowledge base files for consistency",
		RunE:  RunDoctor,
	}
	doctorCmd.Flags().Bool("json", false, "Print machine-readable doctor output")

	// Serve
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and reload on file changes",
		RunE:  RunServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("no-watch", false, "Do not watch the data directory for edits")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "medkb %s\n", version)
		},
	}

	rootCmd.AddCommand(
		diagnoseCmd,
		symptomsCmd,
		diseasesCmd,
		addSymptomCmd,
		addDiseaseCmd,
		ingestCmd,
		statusCmd,
		doctorCmd,
		serveCmd,
		versionCmd,
	)

	return rootCmd
}
