package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/knowledge"
	"github.com/morozRed/medkb/internal/matcher"
	"github.com/morozRed/medkb/internal/mutator"
	"github.com/morozRed/medkb/internal/search"
	"github.com/morozRed/medkb/internal/state"
)

func newTestEngine(t *testing.T, backend string) *Engine {
	t.Helper()
	e, err := New(Options{DataDir: t.TempDir(), Evaluator: backend, Logger: zap.NewNop(), SaveState: true})
	require.NoError(t, err)
	return e
}

func seedFlu(t *testing.T, e *Engine) {
	t.Helper()
	_, err := e.AddDisease(mutator.NewDisease{
		Name:        "Flu",
		Description: "Influenza, a respiratory infection.",
		Precautions: []string{"rest", "drink fluids"},
		Symptoms:    []string{"fever", "cough"},
	})
	require.NoError(t, err)
}

func TestNewOnEmptyDirectory(t *testing.T) {
	e := newTestEngine(t, "")
	snap := e.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.KB.Len())
	assert.Empty(t, e.Symptoms())
	assert.Equal(t, "native", e.Backend())
}

func TestNewRejectsUnknownEvaluator(t *testing.T) {
	_, err := New(Options{DataDir: t.TempDir(), Evaluator: "clips"})
	require.Error(t, err)
}

func TestMutationSwapsSnapshot(t *testing.T) {
	e := newTestEngine(t, "native")
	before := e.Snapshot()

	seedFlu(t, e)

	after := e.Snapshot()
	assert.NotSame(t, before, after)
	assert.Equal(t, 0, before.KB.Len())
	assert.True(t, after.KB.Has("flu"))
	assert.Equal(t, []string{"cough", "fever"}, e.Symptoms())
}

func TestDiagnoseWithDetails(t *testing.T) {
	for _, backend := range []string{"native", "mangle"} {
		t.Run(backend, func(t *testing.T) {
			e := newTestEngine(t, backend)
			seedFlu(t, e)

			diagnosis, err := e.Diagnose([]string{"Fever", "cough"})
			require.NoError(t, err)
			assert.True(t, diagnosis.Final)
			assert.Equal(t, matcher.ModeExact, diagnosis.Mode)
			assert.Equal(t, []string{"flu"}, diagnosis.Diseases())
			require.Len(t, diagnosis.Details, 1)
			assert.Equal(t, "Flu", diagnosis.Details[0].Name)
			assert.Equal(t, "Influenza, a respiratory infection.", diagnosis.Details[0].Description)
			assert.Equal(t, []string{"Rest", "Drink fluids"}, diagnosis.Details[0].Precautions)
			assert.Equal(t, backend, diagnosis.Evaluator)

			partial, err := e.Diagnose([]string{"fever", "rash"})
			require.NoError(t, err)
			assert.False(t, partial.Final)
			assert.Empty(t, partial.Candidates)
			assert.Equal(t, []string{"rash"}, partial.Unknown)

			probe, err := e.Diagnose([]string{"fever"})
			require.NoError(t, err)
			assert.False(t, probe.Final)
			assert.Equal(t, []string{"cough"}, probe.Remaining)
		})
	}
}

func TestDiagnoseRejectsMalformedSymptoms(t *testing.T) {
	e := newTestEngine(t, "native")

	_, err := e.Diagnose(nil)
	assert.ErrorIs(t, err, knowledge.ErrMalformedInput)
	_, err = e.Diagnose([]string{"fever!"})
	assert.ErrorIs(t, err, knowledge.ErrMalformedInput)
}

func TestReloadIfChangedPicksUpHandEdits(t *testing.T) {
	e := newTestEngine(t, "native")
	seedFlu(t, e)

	changed, err := e.ReloadIfChanged()
	require.NoError(t, err)
	assert.False(t, changed)

	f, err := os.OpenFile(e.Layout().Rules(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("\n(defrule is_it_cold\n  (has_symptom sneeze)\n  =>\n  (assert (disease_is cold))\n)\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	changed, err = e.ReloadIfChanged()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, e.Snapshot().KB.Has("cold"))
}

func TestReloadWritesState(t *testing.T) {
	e := newTestEngine(t, "mangle")
	seedFlu(t, e)

	st, err := state.Load(e.Layout().Dir)
	require.NoError(t, err)
	assert.Equal(t, "mangle", st.Evaluator)
	assert.Equal(t, 1, st.Diseases)
	assert.Empty(t, st.ChangedArtifacts(e.Snapshot().Hashes))
}

func TestConcurrentDiagnoseDuringMutations(t *testing.T) {
	e := newTestEngine(t, "native")
	seedFlu(t, e)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				diagnosis, err := e.Diagnose([]string{"fever", "cough"})
				if err != nil {
					t.Errorf("diagnose failed: %v", err)
					return
				}
				if len(diagnosis.Candidates) == 0 {
					t.Errorf("expected candidates while mutating")
					return
				}
			}
		}()
	}
	for _, symptom := range []string{"chills", "headache", "body_ache"} {
		_, err := e.AddSymptom("flu", symptom)
		require.NoError(t, err)
	}
	wg.Wait()

	required, ok := e.Snapshot().KB.Required("flu")
	require.True(t, ok)
	assert.Len(t, required, 5)
}

func TestSearchAndDetail(t *testing.T) {
	e := newTestEngine(t, "native")
	seedFlu(t, e)

	results := e.Search("fever", search.KindSymptom, 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "fever", results[0].Key)

	detail, ok := e.Detail("Flu")
	require.True(t, ok)
	assert.Equal(t, "flu", detail.Key)

	_, ok = e.Detail("malaria")
	assert.False(t, ok)

	diseases := e.Diseases()
	require.Len(t, diseases, 1)
	assert.Equal(t, []string{"cough", "fever"}, diseases[0].Symptoms)
}

func TestIngestThroughEngine(t *testing.T) {
	e := newTestEngine(t, "native")

	result, err := e.Ingest(strings.NewReader("Disease,S1,S2\nFlu,Fever,Cough\nCold,Cough,Sneeze\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DiseasesProcessed)
	assert.Equal(t, 2, e.Snapshot().KB.Len())
}

func TestAuditFindsHandEditProblems(t *testing.T) {
	e := newTestEngine(t, "native")
	seedFlu(t, e)

	report, err := e.Audit()
	require.NoError(t, err)
	assert.True(t, report.Healthy)
	assert.True(t, report.Artifacts[artifacts.RulesFile])

	rules := "\n(defrule is_it_flu\n  (has_symptom fever)\n  (has_symptom rash)\n  =>\n  (assert (disease_is flu))\n)\n"
	f, err := os.OpenFile(filepath.Join(e.Layout().Dir, artifacts.RulesFile), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(rules)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report, err = e.Audit()
	require.NoError(t, err)
	assert.False(t, report.Healthy)
	assert.Equal(t, []string{"flu"}, report.DuplicateBlocks)
	assert.Equal(t, map[string][]string{"flu": {"rash"}}, report.VocabularyGaps)
	assert.Equal(t, []string{"cough"}, report.UnusedSymptoms)
}

func TestHandWrittenMixedCaseRuleIsReachable(t *testing.T) {
	dir := t.TempDir()
	layout := artifacts.NewLayout(dir)
	rules := "(defrule Flu\n  (disease_is Flu)\n  =>\n  (printout t \"Flu\" crlf)\n)\n\n" +
		"(defrule is_it_Flu\n  (has_symptom fever)\n  =>\n  (assert (disease_is Flu))\n)\n"
	require.NoError(t, os.WriteFile(layout.Rules(), []byte(rules), 0644))
	require.NoError(t, artifacts.WriteVocabulary(layout.Vocabulary(), []string{"fever"}))

	e, err := New(Options{DataDir: dir, Evaluator: "native", Logger: zap.NewNop()})
	require.NoError(t, err)

	diagnosis, err := e.Diagnose([]string{"fever"})
	require.NoError(t, err)
	assert.Equal(t, []string{"flu"}, diagnosis.Diseases())

	report, err := e.Audit()
	require.NoError(t, err)
	assert.Equal(t, []string{"Flu", "is_it_Flu"}, report.NonCanonicalRules)
	assert.Empty(t, report.MissingHeaders)
}
