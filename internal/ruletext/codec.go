// Package ruletext reads and writes the CLIPS-style rule file that stores the
// disease/symptom associations.
//
// Each disease owns two blocks: a `(defrule <key> ...)` block that prints the
// disease name once `disease_is <key>` holds, and a `(defrule is_it_<key> ...)`
// block listing the `has_symptom` facts that assert it.
package ruletext

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/morozRed/medkb/internal/knowledge"
)

const (
	ProbePrefix = "is_it_"
	arrow       = "=>"
)

// Header is written once, when the rule file is created.
const Header = `; ------------------------------------------------------------------------------
; disease/symptom rules maintained by medkb
; edit by hand or with: medkb add-disease | medkb add-symptom | medkb ingest
; ------------------------------------------------------------------------------
`

var (
	probeBlockPattern = regexp.MustCompile(`(?s)\(defrule\s+is_it_(\w+)(.*?)=>`)
	symptomPattern    = regexp.MustCompile(`\(has_symptom\s+(\w+)\s*\)`)
	ruleNamePattern   = regexp.MustCompile(`\(defrule\s+(\w+)`)
)

// Parse builds a KnowledgeBase from rule text. Text with no probe blocks, or
// garbage, gives an empty knowledge base. When a disease has several probe
// blocks the last one wins, as a redefined rule would. Disease keys are
// lowercased, so a hand-written is_it_Flu block answers for "flu".
func Parse(text string) *knowledge.KnowledgeBase {
	rules := make(map[string][]string)
	for _, match := range probeBlockPattern.FindAllStringSubmatch(maskComments(text), -1) {
		disease := strings.ToLower(match[1])
		symptoms := make([]string, 0)
		for _, sym := range symptomPattern.FindAllStringSubmatch(match[2], -1) {
			symptoms = append(symptoms, sym[1])
		}
		rules[disease] = symptoms
	}
	return knowledge.New(rules)
}

// AppendDisease renders both blocks for a disease. Symptoms keep the caller's
// order so repeated runs produce identical text.
func AppendDisease(diseaseKey, displayName string, symptoms []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n(defrule %s\n", diseaseKey)
	fmt.Fprintf(&b, "  (disease_is %s)\n", diseaseKey)
	b.WriteString("  =>\n")
	fmt.Fprintf(&b, "  (printout t \"%s\" crlf)\n", strings.ReplaceAll(displayName, `"`, `\"`))
	b.WriteString(")\n")

	fmt.Fprintf(&b, "\n(defrule %s%s\n", ProbePrefix, diseaseKey)
	for _, symptom := range symptoms {
		fmt.Fprintf(&b, "  (has_symptom %s)\n", symptom)
	}
	b.WriteString("  =>\n")
	fmt.Fprintf(&b, "  (assert (disease_is %s))\n", diseaseKey)
	b.WriteString(")\n")
	return b.String()
}

// AddSymptomToRule inserts `(has_symptom symptom)` before the arrow of the first
// is_it_<diseaseKey> block. The rule name is matched case-insensitively.
// changed is false when the block already lists the symptom. A missing block
// returns the text untouched and knowledge.ErrRuleNotFound.
func AddSymptomToRule(text, diseaseKey, symptom string) (updated string, changed bool, err error) {
	masked := maskComments(text)
	start, arrowAt, ok := locateProbeBlock(masked, diseaseKey)
	if !ok {
		return text, false, knowledge.ErrRuleNotFound
	}

	for _, sym := range symptomPattern.FindAllStringSubmatch(masked[start:arrowAt], -1) {
		if sym[1] == symptom {
			return text, false, nil
		}
	}

	lineStart := strings.LastIndex(text[:arrowAt], "\n") + 1
	indent := leadingWhitespace(text[lineStart:arrowAt])
	insert := fmt.Sprintf("(has_symptom %s)\n%s", symptom, indent)
	return text[:arrowAt] + insert + text[arrowAt:], true, nil
}

// HasDisease reports whether a `(defrule <diseaseKey>` header exists outside
// comments. The match is case-sensitive and must end at the key, so "flu" does
// not match "flu_b".
func HasDisease(text, diseaseKey string) bool {
	pattern := regexp.MustCompile(`\(defrule\s+` + regexp.QuoteMeta(diseaseKey) + `(\s|\)|$)`)
	return pattern.MatchString(maskComments(text))
}

// ProbeBlocks lists the lowercased disease key of every is_it_ block in file
// order, duplicates included.
func ProbeBlocks(text string) []string {
	out := make([]string, 0)
	for _, match := range probeBlockPattern.FindAllStringSubmatch(maskComments(text), -1) {
		out = append(out, strings.ToLower(match[1]))
	}
	return out
}

// RuleNames lists every defrule name in file order.
func RuleNames(text string) []string {
	out := make([]string, 0)
	for _, match := range ruleNamePattern.FindAllStringSubmatch(maskComments(text), -1) {
		out = append(out, match[1])
	}
	return out
}

// WithHeader prefixes fragment with Header when the rule file does not exist yet.
func WithHeader(fragment string, fileExists bool) string {
	if fileExists {
		return fragment
	}
	return Header + fragment
}

// locateProbeBlock returns the offset of the block header and of its arrow.
// text must already be comment-masked.
func locateProbeBlock(text, diseaseKey string) (int, int, bool) {
	header := regexp.MustCompile(`(?i)\(defrule\s+` + regexp.QuoteMeta(ProbePrefix+diseaseKey) + `(\s|$)`)
	loc := header.FindStringIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	body := text[loc[1]:]
	arrowRel := strings.Index(body, arrow)
	if arrowRel < 0 {
		return 0, 0, false
	}
	if next := strings.Index(body, "(defrule"); next >= 0 && next < arrowRel {
		return 0, 0, false
	}
	return loc[0], loc[1] + arrowRel, true
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// maskComments blanks `;` comment lines with spaces of the same length, so
// offsets into the result are offsets into text.
func maskComments(text string) string {
	if !strings.Contains(text, ";") {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ";") {
			lines[i] = strings.Repeat(" ", len(line))
		}
	}
	return strings.Join(lines, "\n")
}
