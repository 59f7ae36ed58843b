package artifacts

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/morozRed/medkb/internal/fileutil"
	"github.com/morozRed/medkb/internal/knowledge"
	"github.com/morozRed/medkb/internal/normalize"
)

var (
	DescriptionHeader = []string{"Disease", "Description"}
	PrecautionHeader  = []string{"Disease", "Precaution_1", "Precaution_2", "Precaution_3", "Precaution_4"}
)

// LoadInfo reads the description and precaution tables. Missing tables are
// empty. A malformed line stops parsing of that table; what was read before it
// is kept and the error is returned alongside.
func LoadInfo(l Layout) (knowledge.Info, error) {
	info := knowledge.Info{
		Descriptions: map[string]string{},
		Precautions:  map[string][]string{},
	}
	var errs []error

	if text, exists, err := ReadText(l.Descriptions()); err != nil {
		errs = append(errs, err)
	} else if exists {
		descriptions, err := ParseDescriptions(strings.NewReader(text))
		info.Descriptions = descriptions
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", DescriptionFile, err))
		}
	}

	if text, exists, err := ReadText(l.Precautions()); err != nil {
		errs = append(errs, err)
	} else if exists {
		precautions, err := ParsePrecautions(strings.NewReader(text))
		info.Precautions = precautions
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", PrecautionFile, err))
		}
	}

	return info, errors.Join(errs...)
}

// ParseDescriptions maps disease keys to description text. Unquoted commas in
// the description are kept; stray double quotes are dropped.
func ParseDescriptions(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	err := eachRecord(r, func(record []string) {
		if len(record) < 2 {
			return
		}
		key := normalize.Key(record[0])
		description := strings.ReplaceAll(strings.Join(record[1:], ","), `"`, "")
		out[key] = strings.TrimSpace(description)
	})
	return out, err
}

// ParsePrecautions maps disease keys to capitalized, non-blank precautions.
func ParsePrecautions(r io.Reader) (map[string][]string, error) {
	out := make(map[string][]string)
	err := eachRecord(r, func(record []string) {
		key := normalize.Key(record[0])
		precautions := make([]string, 0, len(record)-1)
		for _, cell := range record[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			precautions = append(precautions, normalize.Capitalize(cell))
		}
		out[key] = precautions
	})
	return out, err
}

// AppendDescription appends one `Disease,Description` record.
func AppendDescription(path, diseaseKey, description string) error {
	return appendRecord(path, DescriptionHeader, []string{normalize.Display(diseaseKey), description})
}

// AppendPrecautions appends one `Disease,Precaution...` record.
func AppendPrecautions(path, diseaseKey string, precautions []string) error {
	record := append([]string{normalize.Display(diseaseKey)}, precautions...)
	return appendRecord(path, PrecautionHeader, record)
}

func appendRecord(path string, header, record []string) error {
	exists, err := fileutil.Exists(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if !exists {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return fileutil.AppendFile(path, buf.Bytes())
}

func eachRecord(r io.Reader, fn func(record []string)) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(record[0]), "disease") {
				continue
			}
		}
		fn(record)
	}
}
