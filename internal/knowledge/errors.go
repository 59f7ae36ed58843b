package knowledge

import (
	"errors"
	"strings"
)

var (
	ErrMalformedInput      = errors.New("malformed input")
	ErrRuleNotFound        = errors.New("rule not found")
	ErrDuplicateDisease    = errors.New("disease already exists")
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	ErrEvaluatorFailure    = errors.New("evaluator failure")
)

// Error reports which operation failed and on which disease or symptom.
// Kind is one of the sentinels above; Err is the underlying cause, if any.
type Error struct {
	Op      string
	Disease string
	Symptom string
	Kind    error
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Disease != "" {
		b.WriteString(" disease=")
		b.WriteString(e.Disease)
	}
	if e.Symptom != "" {
		b.WriteString(" symptom=")
		b.WriteString(e.Symptom)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns the taxonomy sentinel carried by err, or nil.
func Kind(err error) error {
	for _, kind := range []error{
		ErrMalformedInput,
		ErrRuleNotFound,
		ErrDuplicateDisease,
		ErrArtifactUnavailable,
		ErrEvaluatorFailure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
