package ingest

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/ruletext"
)

var header = []string{"Disease", "Symptom_1", "Symptom_2", "Symptom_3", "Symptom_4"}

func TestCompileTwoDiseases(t *testing.T) {
	rows := [][]string{
		header,
		{"Flu", "Fever", "Cough", "", ""},
		{"Cold", "Cough", "Sneeze", "", ""},
	}

	out := Compile(rows, nil)
	assert.Equal(t, []string{"flu", "cold"}, out.Diseases)
	assert.Equal(t, []string{"cough", "fever", "sneeze"}, out.Vocabulary)

	text := strings.Join(out.Fragments, "")
	assert.Equal(t, 2, strings.Count(text, "(defrule is_it_"))

	kb := ruletext.Parse(text)
	assert.Equal(t, map[string][]string{
		"flu":  {"cough", "fever"},
		"cold": {"cough", "sneeze"},
	}, kb.Rules())

	result := out.Result()
	assert.Equal(t, 2, result.DiseasesProcessed)
	assert.Equal(t, 3, result.SymptomsKnown)
}

func TestCompileSkipsEmptyAndInvalidRows(t *testing.T) {
	rows := [][]string{
		header,
		{"Flu", "Fever", "", "", ""},
		{"No Symptoms", "", "", "", ""},
		{"", "", ""},
		{"Bad;Name", "fever"},
		{"Rash Disease", "skin rash", "(?)"},
	}

	out := Compile(rows, []string{"headache"})
	assert.Equal(t, []string{"flu", "rash_disease"}, out.Diseases)
	assert.Equal(t, 2, out.RowsSkipped)
	assert.Equal(t, []string{"fever", "headache", "skinrash"}, out.Vocabulary)
}

func TestCompileIgnoresColumnsPastFour(t *testing.T) {
	rows := [][]string{header, {"Flu", "a", "b", "c", "d", "e"}}
	out := Compile(rows, nil)
	assert.Equal(t, []string{"a", "b", "c", "d"}, out.Vocabulary)
}

func TestCompileBlankCellsDoNotShiftTheWindow(t *testing.T) {
	rows := [][]string{header, {"Flu", "", "", "fever", "cough", "sneeze"}}
	out := Compile(rows, nil)
	assert.Equal(t, []string{"cough", "fever"}, out.Vocabulary)
}

func TestResultPreviewIsBounded(t *testing.T) {
	seed := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	result := Compile([][]string{header}, seed).Result()
	assert.Equal(t, 12, result.SymptomsKnown)
	assert.Equal(t, seed[:10], result.SymptomsPreview)
}

type recordingProgress struct {
	updates []string
	done    int
}

func (r *recordingProgress) Update(item string, count int) { r.updates = append(r.updates, item) }
func (r *recordingProgress) Done(count int)                { r.done = count }

func TestIngestWritesArtifacts(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	require.NoError(t, artifacts.WriteVocabulary(layout.Vocabulary(), []string{"headache"}))

	input := "Disease,Symptom_1,Symptom_2,Symptom_3,Symptom_4\nFlu,Fever,Cough,,\nCold,Cough,Sneeze,,\n"
	progress := &recordingProgress{}
	result, err := Ingest(layout, strings.NewReader(input), progress)
	require.NoError(t, err)

	assert.Equal(t, 2, result.DiseasesProcessed)
	assert.Equal(t, 4, result.SymptomsKnown)
	assert.Equal(t, []string{"flu", "cold"}, progress.updates)
	assert.Equal(t, 2, progress.done)

	vocab, err := os.ReadFile(layout.Vocabulary())
	require.NoError(t, err)
	assert.Equal(t, "cough,\nfever,\nheadache,\nsneeze,\n", string(vocab))

	rules, err := os.ReadFile(layout.Rules())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(rules), ruletext.Header))
	assert.Equal(t, 2, strings.Count(string(rules), "(defrule is_it_"))
}

func TestIngestAppendsWithoutSecondHeader(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	first := "Disease,S1\nFlu,Fever\n"
	second := "Disease,S1\nCold,Cough\n"

	_, err := Ingest(layout, strings.NewReader(first), nil)
	require.NoError(t, err)
	_, err = Ingest(layout, strings.NewReader(second), nil)
	require.NoError(t, err)

	rules, err := os.ReadFile(layout.Rules())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(rules), "disease/symptom rules maintained by medkb"))
	assert.ElementsMatch(t, []string{"flu", "cold"}, ruletext.Parse(string(rules)).Diseases())

	vocab, err := artifacts.ReadVocabulary(layout.Vocabulary())
	require.NoError(t, err)
	assert.Equal(t, []string{"cough", "fever"}, vocab)
}

func TestIngestKeepsUnchangedVocabularyFile(t *testing.T) {
	layout := artifacts.NewLayout(t.TempDir())
	require.NoError(t, artifacts.WriteVocabulary(layout.Vocabulary(), []string{"cough", "fever"}))
	before, err := os.Stat(layout.Vocabulary())
	require.NoError(t, err)

	result, err := Ingest(layout, strings.NewReader("Disease,S1,S2\nFlu,Fever,Cough\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DiseasesProcessed)

	after, err := os.Stat(layout.Vocabulary())
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after))
	assert.True(t, ruletext.Parse(readRules(t, layout)).Has("flu"))
}

func readRules(t *testing.T, layout artifacts.Layout) string {
	t.Helper()
	data, err := os.ReadFile(layout.Rules())
	require.NoError(t, err)
	return string(data)
}
