// Package artifacts owns the on-disk layout of the knowledge base: the rule
// file, the symptom vocabulary, and the description and precaution tables.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	RulesFile       = "disease-symptoms.clp"
	VocabularyFile  = "symptoms.txt"
	DescriptionFile = "disease-description.csv"
	PrecautionFile  = "disease-precaution.csv"
)

// Layout resolves artifact paths under one data directory.
type Layout struct {
	Dir string
}

func NewLayout(dir string) Layout {
	return Layout{Dir: dir}
}

func (l Layout) Rules() string { return filepath.Join(l.Dir, RulesFile) }
func (l Layout) Vocabulary() string { return filepath.Join(l.Dir, VocabularyFile) }
func (l Layout) Descriptions() string { return filepath.Join(l.Dir, DescriptionFile) }
func (l Layout) Precautions() string { return filepath.Join(l.Dir, PrecautionFile) }

// Paths lists the four artifacts in mutation order.
func (l Layout) Paths() []string {
	return []string{l.Vocabulary(), l.Descriptions(), l.Precautions(), l.Rules()}
}

// Names lists the artifact base names in mutation order.
func Names() []string {
	return []string{VocabularyFile, DescriptionFile, PrecautionFile, RulesFile}
}

// IsArtifact reports whether a file name belongs to the layout.
func IsArtifact(name string) bool {
	base := filepath.Base(name)
	for _, known := range Names() {
		if base == known {
			return true
		}
	}
	return false
}

// ReadText returns the file content. A missing file is reported through
// exists=false with no error.
func ReadText(path string) (text string, exists bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return string(data), true, nil
}
