package evaluator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/morozRed/medkb/internal/knowledge"
)

var (
	symptomSym = ast.PredicateSym{Symbol: SymptomPredicate, Arity: 1}
	diseaseSym = ast.PredicateSym{Symbol: DiseasePredicate, Arity: 1}
)

type mangleProgram struct {
	programInfo *analysis.ProgramInfo
}

// CompileMangle translates every disease rule into a Datalog clause and runs
// the Mangle analyzer over the result.
func CompileMangle(kb *knowledge.KnowledgeBase) (Program, error) {
	unit, err := parse.Unit(strings.NewReader(MangleSource(kb)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze rule program: %w", err)
	}
	return &mangleProgram{programInfo: programInfo}, nil
}

// MangleSource renders the knowledge base as a Mangle program.
func MangleSource(kb *knowledge.KnowledgeBase) string {
	var b strings.Builder
	b.WriteString("Decl has_symptom(Symptom).\n")
	b.WriteString("Decl disease_is(Disease).\n")
	kb.Each(func(disease string, required knowledge.SymptomSet) {
		symptoms := required.Sorted()
		body := make([]string, 0, len(symptoms))
		for _, symptom := range symptoms {
			body = append(body, SymptomPredicate+"("+strconv.Quote(symptom)+")")
		}
		fmt.Fprintf(&b, "%s(%s) :- %s.\n", DiseasePredicate, strconv.Quote(disease), strings.Join(body, ", "))
	})
	return b.String()
}

func (p *mangleProgram) NewSession() Evaluator {
	return &Mangle{
		programInfo: p.programInfo,
		store:       factstore.NewSimpleInMemoryStore(),
	}
}

// Mangle evaluates the rules with github.com/google/mangle over an in-memory
// fact store.
type Mangle struct {
	programInfo *analysis.ProgramInfo
	store       factstore.FactStore
}

func (m *Mangle) Assert(fact string) error {
	predicate, arg, ok := parseFact(fact)
	if !ok {
		return fmt.Errorf("malformed fact %q", fact)
	}
	if predicate != SymptomPredicate && predicate != DiseasePredicate {
		return fmt.Errorf("unknown predicate %q", predicate)
	}
	m.store.Add(ast.NewAtom(predicate, ast.String(arg)))
	return nil
}

func (m *Mangle) Run() error {
	if _, err := mengine.EvalProgramWithStats(m.programInfo, m.store); err != nil {
		return fmt.Errorf("mangle evaluation failed: %w", err)
	}
	return nil
}

func (m *Mangle) Facts() ([]string, error) {
	symptoms, err := m.collect(symptomSym)
	if err != nil {
		return nil, err
	}
	diseases, err := m.collect(diseaseSym)
	if err != nil {
		return nil, err
	}

	facts := make([]string, 0, len(symptoms)+len(diseases))
	for _, symptom := range symptoms {
		facts = append(facts, FormatSymptomFact(symptom))
	}
	for _, disease := range diseases {
		facts = append(facts, FormatDiseaseFact(disease))
	}
	return facts, nil
}

func (m *Mangle) collect(sym ast.PredicateSym) ([]string, error) {
	values := make([]string, 0)
	err := m.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		if len(atom.Args) != 1 {
			return nil
		}
		if constant, ok := atom.Args[0].(ast.Constant); ok {
			values = append(values, constant.Symbol)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s facts: %w", sym.Symbol, err)
	}
	sort.Strings(values)
	return values, nil
}
