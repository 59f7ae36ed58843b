package artifacts

import (
	"strings"

	"github.com/morozRed/medkb/internal/fileutil"
)

// ParseVocabulary reads one symptom key per line. A trailing comma on a line is
// accepted, blank lines and repeats are dropped, file order is kept.
func ParseVocabulary(text string) []string {
	entries := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		entry := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ","))
		if entry == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return fileutil.DedupeStrings(entries)
}

// FormatVocabulary renders entries as `key,` lines.
func FormatVocabulary(entries []string) string {
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry)
		b.WriteString(",\n")
	}
	return b.String()
}

// ReadVocabulary loads the vocabulary file; a missing file is an empty vocabulary.
func ReadVocabulary(path string) ([]string, error) {
	text, _, err := ReadText(path)
	if err != nil {
		return nil, err
	}
	return ParseVocabulary(text), nil
}

// AppendVocabulary appends entries in one write. Nothing is written for an
// empty slice.
func AppendVocabulary(path string, entries []string) error {
	if len(entries) == 0 {
		return nil
	}
	return fileutil.AppendFile(path, []byte(FormatVocabulary(entries)))
}

// WriteVocabulary replaces the vocabulary file. An identical file is left
// alone so watchers do not see a spurious change.
func WriteVocabulary(path string, entries []string) error {
	return fileutil.WriteIfChanged(path, []byte(FormatVocabulary(entries)))
}
