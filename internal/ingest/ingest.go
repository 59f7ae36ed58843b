// Package ingest compiles a disease/symptom table into rule text.
//
// Input rows are `Disease,Symptom_1,...,Symptom_4`. The first row is a header.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/knowledge"
	"github.com/morozRed/medkb/internal/normalize"
	"github.com/morozRed/medkb/internal/ruletext"
)

const (
	maxSymptomColumns = 4
	previewSize       = 10
)

// Output is the compiled form of one table.
type Output struct {
	Diseases    []string
	Fragments   []string
	Vocabulary  []string
	RowsSkipped int
}

// Result summarizes an ingestion for callers.
type Result struct {
	DiseasesProcessed int      `json:"diseasesProcessed"`
	SymptomsKnown     int      `json:"symptomsKnown"`
	SymptomsPreview   []string `json:"symptomsPreview"`
	RowsSkipped       int      `json:"rowsSkipped"`
}

// Progress receives one update per compiled disease.
type Progress interface {
	Update(item string, count int)
	Done(count int)
}

type noProgress struct{}

func (noProgress) Update(string, int) {}
func (noProgress) Done(int)           {}

// Compile turns rows into rule fragments. seed is the vocabulary already on
// disk; the returned vocabulary is seed plus every row symptom, sorted. Symptom
// cells that cannot form a key are dropped; rows left without symptoms, or with
// an unusable disease name, are counted in RowsSkipped.
func Compile(rows [][]string, seed []string) Output {
	vocabulary := fileutil.ToSet(seed)
	out := Output{
		Diseases:  make([]string, 0),
		Fragments: make([]string, 0),
	}

	for i, row := range rows {
		if i == 0 || blankRow(row) {
			continue
		}

		disease := normalize.Key(row[0])
		symptoms := make([]string, 0, maxSymptomColumns)
		for col := 1; col < len(row) && col <= maxSymptomColumns; col++ {
			symptom := normalize.CompactKey(row[col])
			if !normalize.Valid(symptom) {
				continue
			}
			symptoms = append(symptoms, symptom)
		}
		if !normalize.Valid(disease) || len(symptoms) == 0 {
			out.RowsSkipped++
			continue
		}

		for _, symptom := range symptoms {
			vocabulary[symptom] = true
		}
		out.Diseases = append(out.Diseases, disease)
		out.Fragments = append(out.Fragments, ruletext.AppendDisease(disease, strings.TrimSpace(row[0]), symptoms))
	}

	out.Vocabulary = fileutil.MapKeysSorted(vocabulary)
	return out
}

// Result reports counts and the first symptoms of the vocabulary.
func (o Output) Result() Result {
	preview := o.Vocabulary
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}
	return Result{
		DiseasesProcessed: len(o.Diseases),
		SymptomsKnown:     len(o.Vocabulary),
		SymptomsPreview:   append([]string{}, preview...),
		RowsSkipped:       o.RowsSkipped,
	}
}

// ReadRows reads a CSV table. Rows may have any number of fields.
func ReadRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &knowledge.Error{Op: "ingest", Kind: knowledge.ErrMalformedInput, Err: err}
	}
	return rows, nil
}

// Ingest compiles r and merges it into the artifacts under layout: fragments
// are appended to the rule file and the vocabulary is rewritten sorted.
func Ingest(layout artifacts.Layout, r io.Reader, progress Progress) (Result, error) {
	if progress == nil {
		progress = noProgress{}
	}

	rows, err := ReadRows(r)
	if err != nil {
		return Result{}, err
	}
	seed, err := artifacts.ReadVocabulary(layout.Vocabulary())
	if err != nil {
		return Result{}, unavailable(err)
	}

	out := Compile(rows, seed)
	for i, disease := range out.Diseases {
		progress.Update(disease, i+1)
	}

	if len(out.Fragments) > 0 {
		exists, err := fileutil.Exists(layout.Rules())
		if err != nil {
			return Result{}, unavailable(err)
		}
		text := ruletext.WithHeader(strings.Join(out.Fragments, ""), exists)
		if err := fileutil.AppendFile(layout.Rules(), []byte(text)); err != nil {
			return Result{}, unavailable(fmt.Errorf("failed to append rules: %w", err))
		}
	}
	if err := artifacts.WriteVocabulary(layout.Vocabulary(), out.Vocabulary); err != nil {
		return Result{}, unavailable(fmt.Errorf("failed to write vocabulary: %w", err))
	}

	progress.Done(len(out.Diseases))
	return out.Result(), nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func unavailable(err error) error {
	return &knowledge.Error{Op: "ingest", Kind: knowledge.ErrArtifactUnavailable, Err: err}
}
