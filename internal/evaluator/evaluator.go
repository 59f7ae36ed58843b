// Package evaluator runs the disease rules as a forward-chaining program.
//
// An Evaluator only needs three primitives: assert a fact, run to fixpoint,
// and enumerate facts. Facts are strings such as `(has_symptom fever)` and
// `(disease_is flu)`.
package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/morozRed/medkb/internal/knowledge"
)

const (
	SymptomPredicate = "has_symptom"
	DiseasePredicate = "disease_is"

	BackendNative = "native"
	BackendMangle = "mangle"
)

// Evaluator is one fact session against a compiled rule set.
type Evaluator interface {
	Assert(fact string) error
	Run() error
	Facts() ([]string, error)
}

// Program is a knowledge base compiled for one backend. Sessions created from
// the same Program are independent.
type Program interface {
	NewSession() Evaluator
}

// Compiler builds a Program from a knowledge base snapshot.
type Compiler func(kb *knowledge.KnowledgeBase) (Program, error)

// Backends lists the accepted backend names.
func Backends() []string {
	return []string{BackendNative, BackendMangle}
}

// CompilerFor resolves a backend name.
func CompilerFor(name string) (Compiler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendNative:
		return CompileChainer, nil
	case BackendMangle:
		return CompileMangle, nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q (expected one of %s)", name, strings.Join(Backends(), ", "))
	}
}

func FormatSymptomFact(symptom string) string {
	return formatFact(SymptomPredicate, symptom)
}

func FormatDiseaseFact(disease string) string {
	return formatFact(DiseasePredicate, disease)
}

// ParseDiseaseFact extracts the disease key from a `disease_is` fact.
func ParseDiseaseFact(fact string) (string, bool) {
	predicate, arg, ok := parseFact(fact)
	if !ok || predicate != DiseasePredicate {
		return "", false
	}
	return arg, true
}

// Fired asserts every session symptom, runs to fixpoint and returns the sorted
// disease keys the evaluator derived. Any evaluator error is reported as an
// evaluator failure and no disease is returned.
func Fired(ev Evaluator, session knowledge.SymptomSet) ([]string, error) {
	for _, symptom := range session.Sorted() {
		if err := ev.Assert(FormatSymptomFact(symptom)); err != nil {
			return nil, evaluatorError("assert", symptom, err)
		}
	}
	if err := ev.Run(); err != nil {
		return nil, evaluatorError("run", "", err)
	}
	facts, err := ev.Facts()
	if err != nil {
		return nil, evaluatorError("facts", "", err)
	}

	seen := make(map[string]bool)
	diseases := make([]string, 0)
	for _, fact := range facts {
		disease, ok := ParseDiseaseFact(fact)
		if !ok || seen[disease] {
			continue
		}
		seen[disease] = true
		diseases = append(diseases, disease)
	}
	sort.Strings(diseases)
	return diseases, nil
}

func evaluatorError(op, symptom string, err error) error {
	return &knowledge.Error{
		Op:      "evaluate " + op,
		Symptom: symptom,
		Kind:    knowledge.ErrEvaluatorFailure,
		Err:     err,
	}
}

func formatFact(predicate, arg string) string {
	return "(" + predicate + " " + arg + ")"
}

// parseFact accepts `(pred arg)` and `pred arg`.
func parseFact(fact string) (predicate, arg string, ok bool) {
	fact = strings.TrimSpace(fact)
	fact = strings.TrimSuffix(strings.TrimPrefix(fact, "("), ")")
	fields := strings.Fields(fact)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}
