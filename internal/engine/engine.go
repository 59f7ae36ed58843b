// Package engine owns the loaded knowledge base. Readers work on an immutable
// Snapshot; every mutation or detected hand edit builds a new Snapshot and swaps
// it in atomically.
package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/morozRed/medkb/internal/artifacts"
	"github.com/morozRed/medkb/internal/evaluator"
	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/ingest"
	"github.com/morozRed/medkb/internal/knowledge"
	"github.com/morozRed/medkb/internal/matcher"
	"github.com/morozRed/medkb/internal/mutator"
	"github.com/morozRed/medkb/internal/normalize"
	"github.com/morozRed/medkb/internal/ruletext"
	"github.com/morozRed/medkb/internal/search"
	"github.com/morozRed/medkb/internal/state"
)

// Snapshot is everything read from the artifacts at one point in time.
type Snapshot struct {
	KB         *knowledge.KnowledgeBase
	Vocabulary []string
	Info       knowledge.Info
	Hashes     map[string]string
	LoadedAt   time.Time

	program evaluator.Program
	index   *search.Index
}

type Options struct {
	DataDir   string
	Evaluator string
	Logger    *zap.Logger
	// SaveState writes the state file after each reload when the data
	// directory exists.
	SaveState bool
}

type Engine struct {
	layout  artifacts.Layout
	backend string
	compile evaluator.Compiler
	logger  *zap.Logger
	save    bool

	mutator  *mutator.Mutator
	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
}

// Diagnosis is a matcher result with display details for its candidates.
type Diagnosis struct {
	matcher.Result
	Details   []knowledge.DiseaseDetail `json:"details"`
	Unknown   []string                  `json:"unknownSymptoms"`
	Evaluator string                    `json:"evaluator"`
}

// DiseaseSummary lists one disease and the symptoms its rule requires.
type DiseaseSummary struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Symptoms []string `json:"symptoms"`
}

// New loads the artifacts under opts.DataDir. Missing artifacts give an empty
// knowledge base.
func New(opts Options) (*Engine, error) {
	backend := opts.Evaluator
	if backend == "" {
		backend = evaluator.BackendNative
	}
	compile, err := evaluator.CompilerFor(backend)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		layout:  artifacts.NewLayout(opts.DataDir),
		backend: backend,
		compile: compile,
		logger:  logger,
		save:    opts.SaveState,
	}
	e.mutator = mutator.New(e.layout, logger.Named("mutator"), e.Reload)

	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Layout() artifacts.Layout { return e.layout }

func (e *Engine) Backend() string { return e.backend }

// Snapshot returns the current snapshot. Callers should take it once per
// operation.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Reload rebuilds the snapshot from disk and swaps it in. On error the
// previous snapshot stays in place.
func (e *Engine) Reload() error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	snap, err := e.load()
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		e.logger.Error("reload failed", zap.Error(err))
		return err
	}
	e.swap(snap)
	return nil
}

// ReloadIfChanged reloads only when artifact hashes differ from the current
// snapshot's.
func (e *Engine) ReloadIfChanged() (bool, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	hashes, err := fileutil.HashFiles(e.layout.Paths())
	if err != nil {
		return false, fmt.Errorf("failed to hash artifacts: %w", err)
	}
	if current := e.current.Load(); current != nil && reflect.DeepEqual(current.Hashes, hashes) {
		return false, nil
	}

	snap, err := e.load()
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		e.logger.Error("reload failed", zap.Error(err))
		return false, err
	}
	e.swap(snap)
	return true, nil
}

func (e *Engine) swap(snap *Snapshot) {
	e.current.Store(snap)
	reloadsTotal.WithLabelValues("ok").Inc()
	knowledgeSize.WithLabelValues("diseases").Set(float64(snap.KB.Len()))
	knowledgeSize.WithLabelValues("symptoms").Set(float64(len(snap.Vocabulary)))
	e.logger.Info("knowledge base loaded",
		zap.String("data_dir", e.layout.Dir),
		zap.String("evaluator", e.backend),
		zap.Int("diseases", snap.KB.Len()),
		zap.Int("symptoms", len(snap.Vocabulary)),
	)
	if e.save {
		e.saveState(snap)
	}
}

func (e *Engine) load() (*Snapshot, error) {
	hashes, err := fileutil.HashFiles(e.layout.Paths())
	if err != nil {
		return nil, fmt.Errorf("failed to hash artifacts: %w", err)
	}

	text, _, err := artifacts.ReadText(e.layout.Rules())
	if err != nil {
		return nil, &knowledge.Error{Op: "load", Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}
	kb := ruletext.Parse(text)

	vocabulary, err := artifacts.ReadVocabulary(e.layout.Vocabulary())
	if err != nil {
		return nil, &knowledge.Error{Op: "load", Kind: knowledge.ErrArtifactUnavailable, Err: err}
	}

	info, err := artifacts.LoadInfo(e.layout)
	if err != nil {
		e.logger.Warn("disease info partially loaded", zap.Error(err))
	}

	program, err := e.compile(kb)
	if err != nil {
		return nil, &knowledge.Error{Op: "compile rules", Kind: knowledge.ErrEvaluatorFailure, Err: err}
	}

	return &Snapshot{
		KB:         kb,
		Vocabulary: vocabulary,
		Info:       info,
		Hashes:     hashes,
		LoadedAt:   time.Now(),
		program:    program,
		index:      search.Build(kb, vocabulary, info),
	}, nil
}

func (e *Engine) saveState(snap *Snapshot) {
	if _, err := os.Stat(e.layout.Dir); err != nil {
		return
	}
	st := state.NewState()
	st.Evaluator = e.backend
	st.Diseases = snap.KB.Len()
	st.Symptoms = len(snap.Vocabulary)
	entries := map[string]int{
		artifacts.RulesFile:       snap.KB.Len(),
		artifacts.VocabularyFile:  len(snap.Vocabulary),
		artifacts.DescriptionFile: len(snap.Info.Descriptions),
		artifacts.PrecautionFile:  len(snap.Info.Precautions),
	}
	for name, hash := range snap.Hashes {
		st.SetArtifact(name, hash, entries[name])
	}
	if err := st.Save(e.layout.Dir); err != nil {
		e.logger.Warn("failed to save state", zap.Error(err))
	}
}

// Diagnose normalizes the symptom names and runs the configured evaluator
// against the current snapshot.
func (e *Engine) Diagnose(symptoms []string) (Diagnosis, error) {
	start := time.Now()
	defer func() {
		diagnoseLatency.WithLabelValues(e.backend).Observe(time.Since(start).Seconds())
	}()

	keys := normalize.Keys(symptoms)
	if len(keys) == 0 {
		diagnosesTotal.WithLabelValues(e.backend, "error").Inc()
		return Diagnosis{}, &knowledge.Error{Op: "diagnose", Kind: knowledge.ErrMalformedInput, Err: errors.New("no symptoms given")}
	}
	for _, key := range keys {
		if !normalize.Valid(key) {
			diagnosesTotal.WithLabelValues(e.backend, "error").Inc()
			return Diagnosis{}, &knowledge.Error{Op: "diagnose", Symptom: key, Kind: knowledge.ErrMalformedInput}
		}
	}

	snap := e.Snapshot()
	session := knowledge.NewSymptomSet(keys...)
	fired, err := evaluator.Fired(snap.program.NewSession(), session)
	if err != nil {
		diagnosesTotal.WithLabelValues(e.backend, "error").Inc()
		e.logger.Error("evaluator failed", zap.String("evaluator", e.backend), zap.Error(err))
		return Diagnosis{}, err
	}

	result := matcher.DiagnoseFired(snap.KB, session, fired)
	diagnosesTotal.WithLabelValues(e.backend, string(result.Mode)).Inc()

	return Diagnosis{
		Result:    result,
		Details:   snap.Info.Details(result.Diseases()),
		Unknown:   snap.unknown(keys),
		Evaluator: e.backend,
	}, nil
}

// AddSymptom adds a symptom to an existing disease rule.
func (e *Engine) AddSymptom(disease, symptom string) (bool, error) {
	changed, err := e.mutator.AddSymptom(disease, symptom)
	countMutation("add_symptom", err)
	return changed, err
}

// AddSymptoms adds several symptoms to one disease rule.
func (e *Engine) AddSymptoms(disease string, symptoms []string) ([]string, error) {
	added, err := e.mutator.AddSymptoms(disease, symptoms)
	countMutation("add_symptom", err)
	return added, err
}

// AddDisease registers a new disease.
func (e *Engine) AddDisease(d mutator.NewDisease) (string, error) {
	key, err := e.mutator.AddDisease(d)
	countMutation("add_disease", err)
	return key, err
}

// Ingest merges a disease/symptom CSV table.
func (e *Engine) Ingest(r io.Reader, progress ingest.Progress) (ingest.Result, error) {
	result, err := e.mutator.Ingest(r, progress)
	countMutation("ingest", err)
	return result, err
}

// Symptoms lists the vocabulary plus any symptom a rule requires, sorted.
func (e *Engine) Symptoms() []string {
	snap := e.Snapshot()
	all := append(append([]string{}, snap.Vocabulary...), snap.KB.Symptoms()...)
	all = fileutil.DedupeStrings(all)
	sort.Strings(all)
	return all
}

// Diseases lists every disease with its required symptoms.
func (e *Engine) Diseases() []DiseaseSummary {
	snap := e.Snapshot()
	out := make([]DiseaseSummary, 0, snap.KB.Len())
	snap.KB.Each(func(disease string, required knowledge.SymptomSet) {
		out = append(out, DiseaseSummary{
			Key:      disease,
			Name:     normalize.Display(disease),
			Symptoms: required.Sorted(),
		})
	})
	return out
}

// Detail returns the display record of a known disease.
func (e *Engine) Detail(disease string) (knowledge.DiseaseDetail, bool) {
	snap := e.Snapshot()
	key := normalize.Key(disease)
	if !snap.KB.Has(key) {
		return knowledge.DiseaseDetail{}, false
	}
	return snap.Info.Detail(key), true
}

// Search ranks symptoms and diseases against query. kind narrows the results
// to search.KindSymptom or search.KindDisease.
func (e *Engine) Search(query, kind string, limit int) []search.Result {
	if limit <= 0 {
		limit = 10
	}
	snap := e.Snapshot()
	results := search.Filter(search.Search(snap.index, query, limit*4), kind)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// unknown returns the keys neither the vocabulary nor any rule mentions.
func (s *Snapshot) unknown(keys []string) []string {
	known := fileutil.ToSet(s.Vocabulary)
	for _, symptom := range s.KB.Symptoms() {
		known[symptom] = true
	}
	return fileutil.Missing(keys, known)
}

func countMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if kind := knowledge.Kind(err); kind != nil {
			result = kind.Error()
		}
	}
	mutationsTotal.WithLabelValues(op, result).Inc()
}
