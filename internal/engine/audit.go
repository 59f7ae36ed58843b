package engine

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/knowledge"
	"github.com/morozRed/medkb/internal/normalize"
	"github.com/morozRed/medkb/internal/ruletext"
)

// Audit is a consistency report over the artifact set, mostly useful after
// hand edits.
type Audit struct {
	DataDir             string              `json:"data_dir"`
	Artifacts           map[string]bool     `json:"artifacts"`
	Diseases            int                 `json:"diseases"`
	Symptoms            int                 `json:"symptoms"`
	VocabularyGaps      map[string][]string `json:"vocabulary_gaps,omitempty"`
	DuplicateBlocks     []string            `json:"duplicate_blocks,omitempty"`
	MissingHeaders      []string            `json:"missing_headers,omitempty"`
	NonCanonicalRules   []string            `json:"non_canonical_rules,omitempty"`
	InvalidVocabulary   []string            `json:"invalid_vocabulary,omitempty"`
	MissingDescriptions []string            `json:"missing_descriptions,omitempty"`
	MissingPrecautions  []string            `json:"missing_precautions,omitempty"`
	UnusedSymptoms      []string            `json:"unused_symptoms,omitempty"`
	Healthy             bool                `json:"healthy"`
}

// Audit checks the files on disk, not the loaded snapshot.
func (e *Engine) Audit() (Audit, error) {
	report := Audit{
		DataDir:        e.layout.Dir,
		Artifacts:      make(map[string]bool),
		VocabularyGaps: make(map[string][]string),
	}
	for _, path := range e.layout.Paths() {
		exists, err := fileutil.Exists(path)
		if err != nil {
			return Audit{}, err
		}
		report.Artifacts[filepath.Base(path)] = exists
	}

	text, _, err := artifacts.ReadText(e.layout.Rules())
	if err != nil {
		return Audit{}, err
	}
	vocabulary, err := artifacts.ReadVocabulary(e.layout.Vocabulary())
	if err != nil {
		return Audit{}, err
	}
	info, _ := artifacts.LoadInfo(e.layout)
	kb := ruletext.Parse(text)
	report.Diseases = kb.Len()
	report.Symptoms = len(vocabulary)

	known := fileutil.ToSet(vocabulary)
	used := make(map[string]bool)
	kb.Each(func(disease string, required knowledge.SymptomSet) {
		for _, symptom := range required.Sorted() {
			used[symptom] = true
			if !known[symptom] {
				report.VocabularyGaps[disease] = append(report.VocabularyGaps[disease], symptom)
			}
		}
		if _, ok := info.Descriptions[disease]; !ok {
			report.MissingDescriptions = append(report.MissingDescriptions, disease)
		}
		if _, ok := info.Precautions[disease]; !ok {
			report.MissingPrecautions = append(report.MissingPrecautions, disease)
		}
	})

	for _, symptom := range vocabulary {
		if !normalize.Valid(symptom) {
			report.InvalidVocabulary = append(report.InvalidVocabulary, symptom)
		}
		if !used[symptom] {
			report.UnusedSymptoms = append(report.UnusedSymptoms, symptom)
		}
	}

	seen := make(map[string]bool)
	for _, disease := range ruletext.ProbeBlocks(text) {
		if seen[disease] {
			report.DuplicateBlocks = append(report.DuplicateBlocks, disease)
		}
		seen[disease] = true
	}
	report.DuplicateBlocks = fileutil.DedupeStrings(report.DuplicateBlocks)
	sort.Strings(report.DuplicateBlocks)

	names := make(map[string]bool)
	for _, name := range ruletext.RuleNames(text) {
		lower := strings.ToLower(name)
		if name != lower {
			report.NonCanonicalRules = append(report.NonCanonicalRules, name)
		}
		names[lower] = true
	}
	report.NonCanonicalRules = fileutil.DedupeStrings(report.NonCanonicalRules)
	for _, disease := range kb.Diseases() {
		if !names[disease] {
			report.MissingHeaders = append(report.MissingHeaders, disease)
		}
	}

	report.Healthy = report.Artifacts[artifacts.RulesFile] &&
		len(report.VocabularyGaps) == 0 &&
		len(report.DuplicateBlocks) == 0 &&
		len(report.MissingHeaders) == 0 &&
		len(report.InvalidVocabulary) == 0
	return report, nil
}
