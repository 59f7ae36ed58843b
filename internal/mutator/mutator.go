// Package mutator appends knowledge to the artifact set.
//
// Every operation runs under one lock. Writes are additive except the rule
// file rewrite that inserts a symptom before a block's arrow, which goes
// through a temp file and rename. The reload callback runs after a successful
// write sequence and never after a rejected one.
package mutator

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/ingest"
	"github.com/morozRed/medkb/internal/knowledge"
	"github.com/morozRed/medkb/internal/normalize"
	"github.com/morozRed/medkb/internal/ruletext"
)

// Reloader rebuilds the in-memory knowledge base from the artifacts.
type Reloader func() error

// NewDisease is the input of AddDisease. Names may be free text.
type NewDisease struct {
	Name        string
	Description string
	Precautions []string
	Symptoms    []string
}

type Mutator struct {
	layout artifacts.Layout
	logger *zap.Logger
	reload Reloader

	mu sync.Mutex
}

func New(layout artifacts.Layout, logger *zap.Logger, reload Reloader) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reload == nil {
		reload = func() error { return nil }
	}
	return &Mutator{layout: layout, logger: logger, reload: reload}
}

// AddSymptom adds one symptom to an existing disease. changed is false when
// the rule already listed it.
func (m *Mutator) AddSymptom(disease, symptom string) (changed bool, err error) {
	added, err := m.addSymptoms("add symptom", disease, []string{symptom})
	if err != nil {
		return false, err
	}
	return len(added) > 0, nil
}

// AddSymptoms adds several symptoms to one disease with a single rule rewrite
// and returns the ones that were not listed before.
func (m *Mutator) AddSymptoms(disease string, symptoms []string) ([]string, error) {
	return m.addSymptoms("add symptoms", disease, symptoms)
}

func (m *Mutator) addSymptoms(op, disease string, symptoms []string) ([]string, error) {
	diseaseKey := normalize.Key(disease)
	if !normalize.Valid(diseaseKey) {
		return nil, &knowledge.Error{Op: op, Disease: disease, Kind: knowledge.ErrMalformedInput}
	}
	keys := normalize.Keys(symptoms)
	if len(keys) == 0 {
		return nil, &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrMalformedInput, Err: errors.New("no symptom given")}
	}
	for _, key := range keys {
		if !normalize.Valid(key) {
			return nil, &knowledge.Error{Op: op, Disease: diseaseKey, Symptom: key, Kind: knowledge.ErrMalformedInput}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	text, exists, err := artifacts.ReadText(m.layout.Rules())
	if err != nil {
		return nil, &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}
	if !exists {
		return nil, &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: fmt.Errorf("%s does not exist", artifacts.RulesFile)}
	}

	updated := text
	added := make([]string, 0, len(keys))
	for _, key := range keys {
		next, changed, err := ruletext.AddSymptomToRule(updated, diseaseKey, key)
		if err != nil {
			return nil, &knowledge.Error{Op: op, Disease: diseaseKey, Symptom: key, Kind: knowledge.ErrRuleNotFound}
		}
		if changed {
			added = append(added, key)
			updated = next
		}
	}

	vocabWritten, err := m.extendVocabulary(op, diseaseKey, keys)
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		if err := fileutil.WriteFileAtomic(m.layout.Rules(), []byte(updated), 0644); err != nil {
			return nil, &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: err}
		}
	}
	if len(added) == 0 && len(vocabWritten) == 0 {
		return added, nil
	}

	m.logger.Info("symptoms added",
		zap.String("disease", diseaseKey),
		zap.Strings("added", added),
		zap.Strings("vocabulary", vocabWritten),
	)
	if err := m.reload(); err != nil {
		return added, fmt.Errorf("reload after %s: %w", op, err)
	}
	return added, nil
}

// AddDisease registers a new disease across all four artifacts and returns its
// key. The vocabulary, description, precaution and rule appends happen in that
// order, so the disease is not queryable until the last one lands.
func (m *Mutator) AddDisease(d NewDisease) (string, error) {
	const op = "add disease"

	diseaseKey := normalize.Key(d.Name)
	if !normalize.Valid(diseaseKey) {
		return "", &knowledge.Error{Op: op, Disease: d.Name, Kind: knowledge.ErrMalformedInput}
	}
	symptoms := normalize.Keys(d.Symptoms)
	if len(symptoms) == 0 {
		return "", &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrMalformedInput, Err: errors.New("at least one symptom is required")}
	}
	for _, symptom := range symptoms {
		if !normalize.Valid(symptom) {
			return "", &knowledge.Error{Op: op, Disease: diseaseKey, Symptom: symptom, Kind: knowledge.ErrMalformedInput}
		}
	}
	precautions := make([]string, 0, len(d.Precautions))
	for _, precaution := range d.Precautions {
		if precaution = strings.TrimSpace(precaution); precaution != "" {
			precautions = append(precautions, precaution)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	text, exists, err := artifacts.ReadText(m.layout.Rules())
	if err != nil {
		return "", &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}
	if ruletext.HasDisease(text, diseaseKey) {
		return "", &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrDuplicateDisease}
	}

	if _, err := m.extendVocabulary(op, diseaseKey, symptoms); err != nil {
		return "", err
	}
	if err := artifacts.AppendDescription(m.layout.Descriptions(), diseaseKey, strings.TrimSpace(d.Description)); err != nil {
		return "", &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}
	if err := artifacts.AppendPrecautions(m.layout.Precautions(), diseaseKey, precautions); err != nil {
		return "", &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}
	fragment := ruletext.WithHeader(ruletext.AppendDisease(diseaseKey, normalize.Display(diseaseKey), symptoms), exists)
	if err := fileutil.AppendFile(m.layout.Rules(), []byte(fragment)); err != nil {
		return "", &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}

	m.logger.Info("disease added",
		zap.String("disease", diseaseKey),
		zap.Int("symptoms", len(symptoms)),
		zap.Int("precautions", len(precautions)),
	)
	if err := m.reload(); err != nil {
		return diseaseKey, fmt.Errorf("reload after %s: %w", op, err)
	}
	return diseaseKey, nil
}

// Ingest compiles a CSV table into the artifacts under the mutation lock.
func (m *Mutator) Ingest(r io.Reader, progress ingest.Progress) (ingest.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := ingest.Ingest(m.layout, r, progress)
	if err != nil {
		return ingest.Result{}, err
	}
	m.logger.Info("csv ingested",
		zap.Int("diseases", result.DiseasesProcessed),
		zap.Int("symptoms", result.SymptomsKnown),
		zap.Int("skipped", result.RowsSkipped),
	)
	if err := m.reload(); err != nil {
		return result, fmt.Errorf("reload after ingest: %w", err)
	}
	return result, nil
}

// extendVocabulary appends the symptoms the vocabulary does not list yet.
func (m *Mutator) extendVocabulary(op, diseaseKey string, symptoms []string) ([]string, error) {
	known, err := artifacts.ReadVocabulary(m.layout.Vocabulary())
	if err != nil {
		return nil, &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}
	missing := fileutil.Missing(symptoms, fileutil.ToSet(known))
	if err := artifacts.AppendVocabulary(m.layout.Vocabulary(), missing); err != nil {
		return nil, &knowledge.Error{Op: op, Disease: diseaseKey, Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}
	return missing, nil
}
