// Package knowledge holds the in-memory disease/symptom association built from
// the rule file. A KnowledgeBase is never modified after construction; a reload
// builds a new one.
package knowledge

import "sort"

// SymptomSet is a set of symptom keys.
type SymptomSet map[string]struct{}

// NewSymptomSet builds a set from keys.
func NewSymptomSet(keys ...string) SymptomSet {
	set := make(SymptomSet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s SymptomSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// SubsetOf reports whether every key of s is in other.
func (s SymptomSet) SubsetOf(other SymptomSet) bool {
	if len(s) > len(other) {
		return false
	}
	for key := range s {
		if !other.Has(key) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same keys.
func (s SymptomSet) Equal(other SymptomSet) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Intersect counts the keys shared with other.
func (s SymptomSet) Intersect(other SymptomSet) int {
	count := 0
	for key := range s {
		if other.Has(key) {
			count++
		}
	}
	return count
}

// Sorted returns the keys in lexicographic order.
func (s SymptomSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for key := range s {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (s SymptomSet) clone() SymptomSet {
	out := make(SymptomSet, len(s))
	for key := range s {
		out[key] = struct{}{}
	}
	return out
}

// KnowledgeBase maps disease keys to their required-symptom sets.
type KnowledgeBase struct {
	diseases map[string]SymptomSet
}

// New copies rules into a KnowledgeBase. Diseases with no symptoms are kept out
// since they can never be asked about.
func New(rules map[string][]string) *KnowledgeBase {
	kb := &KnowledgeBase{diseases: make(map[string]SymptomSet, len(rules))}
	for disease, symptoms := range rules {
		if disease == "" || len(symptoms) == 0 {
			continue
		}
		kb.diseases[disease] = NewSymptomSet(symptoms...)
	}
	return kb
}

// Empty returns a KnowledgeBase with no diseases.
func Empty() *KnowledgeBase {
	return &KnowledgeBase{diseases: map[string]SymptomSet{}}
}

// Len returns the number of diseases.
func (kb *KnowledgeBase) Len() int {
	if kb == nil {
		return 0
	}
	return len(kb.diseases)
}

// Diseases returns every disease key, sorted.
func (kb *KnowledgeBase) Diseases() []string {
	if kb == nil {
		return nil
	}
	out := make([]string, 0, len(kb.diseases))
	for disease := range kb.diseases {
		out = append(out, disease)
	}
	sort.Strings(out)
	return out
}

// Required returns a copy of the disease's required-symptom set.
func (kb *KnowledgeBase) Required(disease string) (SymptomSet, bool) {
	if kb == nil {
		return nil, false
	}
	set, ok := kb.diseases[disease]
	if !ok {
		return nil, false
	}
	return set.clone(), true
}

// Has reports whether disease has a rule.
func (kb *KnowledgeBase) Has(disease string) bool {
	if kb == nil {
		return false
	}
	_, ok := kb.diseases[disease]
	return ok
}

// Symptoms returns the union of all required sets, sorted.
func (kb *KnowledgeBase) Symptoms() []string {
	if kb == nil {
		return nil
	}
	union := make(SymptomSet)
	for _, set := range kb.diseases {
		for key := range set {
			union[key] = struct{}{}
		}
	}
	return union.Sorted()
}

// Each calls fn for every disease in key order.
func (kb *KnowledgeBase) Each(fn func(disease string, required SymptomSet)) {
	for _, disease := range kb.Diseases() {
		fn(disease, kb.diseases[disease])
	}
}

// Rules exports the knowledge base as sorted symptom lists.
func (kb *KnowledgeBase) Rules() map[string][]string {
	out := make(map[string][]string, kb.Len())
	kb.Each(func(disease string, required SymptomSet) {
		out[disease] = required.Sorted()
	})
	return out
}
