package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/morozRed/medkb/internal/normalize"
)

func resolveDataDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return abs, nil
}

// LoadSymptomFile reads one symptom per line. Blank lines and lines starting
// with # are skipped; a line may also hold a comma-separated list.
func LoadSymptomFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symptom file: %w", err)
	}
	defer f.Close()

	symptoms := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symptoms = append(symptoms, normalize.SplitList(line)...)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse symptom file: %w", err)
	}

	return symptoms, nil
}

func splitArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, normalize.SplitList(arg)...)
	}
	return out
}
