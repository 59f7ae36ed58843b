package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/ruletext"
	"github.com/morozRed/medkb/internal/state"
)

func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--data-dir", dataDir, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func mustRunCLI(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dataDir, args...)
	if err != nil {
		t.Fatalf("medkb %s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func seedFlu(t *testing.T, dataDir string) {
	t.Helper()
	mustRunCLI(t, dataDir, "add-disease", "Flu",
		"--symptoms", "fever,cough",
		"--description", "Influenza.",
		"--precautions", "rest,drink fluids",
	)
}

func TestAddDiseaseThenDiagnose(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)

	for _, name := range artifacts.Names() {
		assertExists(t, filepath.Join(dataDir, name))
	}

	out := mustRunCLI(t, dataDir, "diagnose", "fever", "cough", "--json")
	var diagnosis map[string]any
	if err := json.Unmarshal([]byte(out), &diagnosis); err != nil {
		t.Fatalf("failed to parse diagnose JSON: %v\n%s", err, out)
	}
	if diagnosis["mode"] != "exact" {
		t.Fatalf("expected exact mode, got %v", diagnosis["mode"])
	}
	if diagnosis["isFinalDiagnosis"] != true {
		t.Fatalf("expected final diagnosis, got %v", diagnosis["isFinalDiagnosis"])
	}

	out = mustRunCLI(t, dataDir, "diagnose", "fever")
	if !strings.Contains(out, "possible diseases (1)") || !strings.Contains(out, "also ask about: cough") {
		t.Fatalf("unexpected subset-probe output:\n%s", out)
	}

	out = mustRunCLI(t, dataDir, "diagnose", "rash")
	if !strings.Contains(out, "no diseases detected") || !strings.Contains(out, "unknown symptoms: rash") {
		t.Fatalf("unexpected no-match output:\n%s", out)
	}
}

func TestDiagnoseWithMangleEvaluator(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)

	out := mustRunCLI(t, dataDir, "diagnose", "fever,cough", "--evaluator", "mangle")
	if !strings.Contains(out, "diagnosis (mangle)") || !strings.Contains(out, "- Flu [2/2 symptoms]") {
		t.Fatalf("unexpected mangle output:\n%s", out)
	}
}

func TestDiagnoseFromFile(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)

	symptomFile := filepath.Join(t.TempDir(), "symptoms.txt")
	mustWriteFile(t, symptomFile, "# reported at intake\nfever\n\ncough\n")

	out := mustRunCLI(t, dataDir, "diagnose", "--from-file", symptomFile)
	if !strings.Contains(out, "Influenza.") || !strings.Contains(out, "precautions: Rest; Drink fluids") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestDiagnoseRequiresSymptoms(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)

	if _, err := runCLI(t, dataDir, "diagnose"); err == nil {
		t.Fatalf("expected error for empty symptom list")
	}
}

func TestAddSymptomAndDuplicateDisease(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)

	out := mustRunCLI(t, dataDir, "add-symptom", "flu", "headache", "--json")
	var summary EditSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("failed to parse add-symptom JSON: %v", err)
	}
	if summary.Disease != "flu" || len(summary.Added) != 1 || summary.Added[0] != "headache" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	out = mustRunCLI(t, dataDir, "add-symptom", "flu", "headache", "fever")
	if !strings.Contains(out, "no change") {
		t.Fatalf("expected no-change output, got:\n%s", out)
	}

	out = mustRunCLI(t, dataDir, "diseases")
	if strings.TrimSpace(out) != "flu: cough, fever, headache" {
		t.Fatalf("unexpected diseases output:\n%s", out)
	}

	if _, err := runCLI(t, dataDir, "add-symptom", "measles", "rash"); err == nil {
		t.Fatalf("expected error for unknown disease")
	}
	if _, err := runCLI(t, dataDir, "add-disease", "FLU", "--symptoms", "rash"); err == nil {
		t.Fatalf("expected duplicate disease error")
	}
}

func TestDiseaseDetail(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)

	out := mustRunCLI(t, dataDir, "diseases", "Flu")
	for _, expected := range []string{"Flu (flu)", "symptoms: cough, fever", "description: Influenza.", "- Drink fluids"} {
		if !strings.Contains(out, expected) {
			t.Fatalf("expected %q in output:\n%s", expected, out)
		}
	}
	if _, err := runCLI(t, dataDir, "diseases", "measles"); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestIngestAndSymptomLookup(t *testing.T) {
	dataDir := t.TempDir()
	table := filepath.Join(t.TempDir(), "table.csv")
	mustWriteFile(t, table, "Disease,Symptom_1,Symptom_2,Symptom_3\nMalaria, chills, high_fever, sweating\nCommon Cold, sneezing, ,\n,,\n")

	out := mustRunCLI(t, dataDir, "ingest", table, "--json")
	var summary IngestSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("failed to parse ingest JSON: %v\n%s", err, out)
	}
	if summary.Result.DiseasesProcessed != 2 || summary.Result.SymptomsKnown != 4 {
		t.Fatalf("unexpected ingest result: %+v", summary.Result)
	}

	out = mustRunCLI(t, dataDir, "symptoms")
	if strings.TrimSpace(out) != "chills\nhigh_fever\nsneezing\nsweating" {
		t.Fatalf("unexpected symptom list:\n%s", out)
	}

	out = mustRunCLI(t, dataDir, "symptoms", "chils", "--json")
	if !strings.Contains(out, `"key": "chills"`) {
		t.Fatalf("expected fuzzy match for chills, got:\n%s", out)
	}
}

func TestStatusTracksHandEdits(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)
	assertExists(t, filepath.Join(dataDir, state.StateFile))

	out := mustRunCLI(t, dataDir, "status", "--json")
	var summary StatusSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("failed to parse status JSON: %v", err)
	}
	if !summary.Clean || summary.Diseases != 1 {
		t.Fatalf("expected clean status with one disease, got %+v", summary)
	}

	vocab := filepath.Join(dataDir, artifacts.VocabularyFile)
	data, err := os.ReadFile(vocab)
	if err != nil {
		t.Fatalf("failed to read vocabulary: %v", err)
	}
	mustWriteFile(t, vocab, string(data)+"rash,\n")

	out = mustRunCLI(t, dataDir, "status")
	if !strings.Contains(out, "clean=false") || !strings.Contains(out, "changed files (1): "+artifacts.VocabularyFile) {
		t.Fatalf("expected vocabulary change in status, got:\n%s", out)
	}

	// any command that loads the knowledge base records the new hashes
	mustRunCLI(t, dataDir, "symptoms")
	out = mustRunCLI(t, dataDir, "status")
	if !strings.Contains(out, "clean=true") {
		t.Fatalf("expected clean status after reload, got:\n%s", out)
	}
}

func TestStatusWithCorruptState(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)
	mustWriteFile(t, filepath.Join(dataDir, state.StateFile), "{not json")

	out := mustRunCLI(t, dataDir, "status", "--json")
	var summary StatusSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("failed to parse status JSON: %v", err)
	}
	if !summary.CorruptState || summary.Clean {
		t.Fatalf("expected corrupt, unclean status, got %+v", summary)
	}
}

func TestDoctorReportsHealthyAndBrokenKnowledgeBases(t *testing.T) {
	dataDir := t.TempDir()
	seedFlu(t, dataDir)

	out := mustRunCLI(t, dataDir, "doctor")
	if !strings.Contains(out, "doctor: ok") {
		t.Fatalf("expected healthy doctor output, got:\n%s", out)
	}

	rules := filepath.Join(dataDir, artifacts.RulesFile)
	data, err := os.ReadFile(rules)
	if err != nil {
		t.Fatalf("failed to read rules: %v", err)
	}
	extra := ruletext.AppendDisease("flu", "Flu", []string{"fever", "chills"})
	mustWriteFile(t, rules, string(data)+extra)

	out = mustRunCLI(t, dataDir, "doctor", "--json")
	var summary DoctorSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("failed to parse doctor JSON: %v\n%s", err, out)
	}
	if summary.Healthy {
		t.Fatalf("expected unhealthy doctor summary")
	}
	if len(summary.Audit.DuplicateBlocks) != 1 || summary.Audit.DuplicateBlocks[0] != "flu" {
		t.Fatalf("expected duplicate flu block, got %v", summary.Audit.DuplicateBlocks)
	}
	if gaps := summary.Audit.VocabularyGaps["flu"]; len(gaps) != 1 || gaps[0] != "chills" {
		t.Fatalf("expected chills vocabulary gap, got %v", summary.Audit.VocabularyGaps)
	}
}

func TestDoctorOnEmptyDirectory(t *testing.T) {
	out := mustRunCLI(t, t.TempDir(), "doctor")
	if !strings.Contains(out, "doctor: issues") || !strings.Contains(out, "next: run medkb ingest") {
		t.Fatalf("unexpected doctor output:\n%s", out)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "medkb.yaml")
	mustWriteFile(t, configPath, "data_dir: "+filepath.Join(dir, "from-config")+"\nevaluator: mangle\n")

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("data-dir", "", "")
	cmd.Flags().String("evaluator", "", "")
	mustSetFlag(t, cmd, "config", configPath)

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Evaluator != "mangle" || cfg.DataDir != filepath.Join(dir, "from-config") {
		t.Fatalf("unexpected config from file: %+v", cfg)
	}

	mustSetFlag(t, cmd, "evaluator", "native")
	mustSetFlag(t, cmd, "data-dir", filepath.Join(dir, "from-flag"))
	cfg, err = LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Evaluator != "native" || cfg.DataDir != filepath.Join(dir, "from-flag") {
		t.Fatalf("flags should override config file: %+v", cfg)
	}

	mustSetFlag(t, cmd, "evaluator", "clips")
	if _, err := LoadConfig(cmd); err == nil {
		t.Fatalf("expected validation error for unknown evaluator")
	}
}

func TestLoadSymptomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	mustWriteFile(t, path, "fever, cough\n# comment\n\n  runny nose  \n")

	got, err := LoadSymptomFile(path)
	if err != nil {
		t.Fatalf("LoadSymptomFile failed: %v", err)
	}
	want := []string{"fever", "cough", "runny nose"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestVersion(t *testing.T) {
	out := mustRunCLI(t, t.TempDir(), "version")
	if strings.TrimSpace(out) != "medkb test" {
		t.Fatalf("unexpected version output %q", out)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func mustSetFlag(t *testing.T, cmd *cobra.Command, key, value string) {
	t.Helper()
	if err := cmd.Flags().Set(key, value); err != nil {
		t.Fatalf("failed to set --%s: %v", key, err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}
