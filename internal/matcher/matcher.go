// Package matcher turns a session symptom set into disease candidates.
//
// Two policies are supported. Exact mode keeps a disease when every symptom it
// requires has been observed, which is when its rule would fire. Subset-probe
// mode keeps a disease when every observed symptom is among the ones it
// requires, which is how candidates are narrowed before all symptoms are known.
package matcher

import (
	"sort"

	"github.com/morozRed/medkb/internal/knowledge"
)

type Mode string

const (
	ModeExact       Mode = "exact"
	ModeSubsetProbe Mode = "subset_probe"
	ModeNone        Mode = "none"
)

// Candidate is one disease consistent with the session symptoms.
type Candidate struct {
	Disease  string  `json:"disease"`
	Matched  int     `json:"matched"`
	Required int     `json:"required"`
	Score    float64 `json:"score"`
}

// Result is the outcome of one diagnosis call.
type Result struct {
	Mode       Mode        `json:"mode"`
	Candidates []Candidate `json:"candidates"`
	Final      bool        `json:"isFinalDiagnosis"`
	Remaining  []string    `json:"remainingSymptoms"`
}

// Diseases returns the candidate keys in ranking order.
func (r Result) Diseases() []string {
	out := make([]string, 0, len(r.Candidates))
	for _, candidate := range r.Candidates {
		out = append(out, candidate.Disease)
	}
	return out
}

// Candidates lists, sorted, the diseases kept by mode for the session set.
func Candidates(kb *knowledge.KnowledgeBase, session knowledge.SymptomSet, mode Mode) []string {
	out := make([]string, 0)
	kb.Each(func(disease string, required knowledge.SymptomSet) {
		switch mode {
		case ModeExact:
			if required.SubsetOf(session) {
				out = append(out, disease)
			}
		case ModeSubsetProbe:
			if session.SubsetOf(required) {
				out = append(out, disease)
			}
		}
	})
	sort.Strings(out)
	return out
}

// Diagnose runs Exact mode first and falls back to Subset-probe mode.
func Diagnose(kb *knowledge.KnowledgeBase, session knowledge.SymptomSet) Result {
	return DiagnoseFired(kb, session, Candidates(kb, session, ModeExact))
}

// DiagnoseFired is Diagnose with the Exact-mode candidates supplied by a rule
// evaluator. Fired keys that the knowledge base does not know are ignored.
func DiagnoseFired(kb *knowledge.KnowledgeBase, session knowledge.SymptomSet, fired []string) Result {
	exact := make([]string, 0, len(fired))
	fits := make([]string, 0, len(fired))
	for _, disease := range fired {
		required, ok := kb.Required(disease)
		if !ok {
			continue
		}
		exact = append(exact, disease)
		if required.Equal(session) {
			fits = append(fits, disease)
		}
	}

	if len(exact) > 0 {
		chosen := exact
		if len(fits) > 0 {
			chosen = fits
		}
		return Result{
			Mode:       ModeExact,
			Candidates: rank(kb, session, chosen),
			Final:      true,
			Remaining:  []string{},
		}
	}

	probed := Candidates(kb, session, ModeSubsetProbe)
	if len(probed) == 0 {
		return Result{
			Mode:       ModeNone,
			Candidates: []Candidate{},
			Remaining:  []string{},
		}
	}

	remaining := knowledge.NewSymptomSet()
	for _, disease := range probed {
		required, _ := kb.Required(disease)
		for symptom := range required {
			if !session.Has(symptom) {
				remaining[symptom] = struct{}{}
			}
		}
	}

	return Result{
		Mode:       ModeSubsetProbe,
		Candidates: rank(kb, session, probed),
		Remaining:  remaining.Sorted(),
	}
}

func rank(kb *knowledge.KnowledgeBase, session knowledge.SymptomSet, diseases []string) []Candidate {
	seen := make(map[string]bool, len(diseases))
	out := make([]Candidate, 0, len(diseases))
	for _, disease := range diseases {
		if seen[disease] {
			continue
		}
		seen[disease] = true
		required, _ := kb.Required(disease)
		matched := required.Intersect(session)
		score := 0.0
		if len(required) > 0 {
			score = float64(matched) / float64(len(required)) * 100
		}
		out = append(out, Candidate{
			Disease:  disease,
			Matched:  matched,
			Required: len(required),
			Score:    score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Disease < out[j].Disease
	})
	return out
}
