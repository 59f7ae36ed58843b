package evaluator

import (
	"fmt"

	"github.com/morozRed/medkb/internal/knowledge"
)

type chainerProgram struct {
	kb *knowledge.KnowledgeBase
}

// CompileChainer wraps a knowledge base for the in-process forward chainer.
func CompileChainer(kb *knowledge.KnowledgeBase) (Program, error) {
	if kb == nil {
		kb = knowledge.Empty()
	}
	return chainerProgram{kb: kb}, nil
}

func (p chainerProgram) NewSession() Evaluator {
	return &Chainer{
		kb:       p.kb,
		symptoms: knowledge.NewSymptomSet(),
		derived:  make(map[string]bool),
	}
}

// Chainer fires `is_it_<disease>` rules once all their symptoms are asserted.
type Chainer struct {
	kb       *knowledge.KnowledgeBase
	symptoms knowledge.SymptomSet
	order    []string
	derived  map[string]bool
	fired    []string
}

func (c *Chainer) Assert(fact string) error {
	predicate, arg, ok := parseFact(fact)
	if !ok {
		return fmt.Errorf("malformed fact %q", fact)
	}
	switch predicate {
	case SymptomPredicate:
		if !c.symptoms.Has(arg) {
			c.symptoms[arg] = struct{}{}
			c.order = append(c.order, arg)
		}
	case DiseasePredicate:
		c.derive(arg)
	default:
		return fmt.Errorf("unknown predicate %q", predicate)
	}
	return nil
}

// Run fires rules until no new disease is derived.
func (c *Chainer) Run() error {
	for {
		changed := false
		c.kb.Each(func(disease string, required knowledge.SymptomSet) {
			if !c.derived[disease] && required.SubsetOf(c.symptoms) {
				c.derive(disease)
				changed = true
			}
		})
		if !changed {
			return nil
		}
	}
}

func (c *Chainer) Facts() ([]string, error) {
	facts := make([]string, 0, len(c.order)+len(c.fired))
	for _, symptom := range c.order {
		facts = append(facts, FormatSymptomFact(symptom))
	}
	for _, disease := range c.fired {
		facts = append(facts, FormatDiseaseFact(disease))
	}
	return facts, nil
}

func (c *Chainer) derive(disease string) {
	if c.derived[disease] {
		return
	}
	c.derived[disease] = true
	c.fired = append(c.fired, disease)
}
