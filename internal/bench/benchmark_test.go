package bench

import (
	"fmt"
	"strings"
	"testing"

	"github.com/morozRed/medkb/internal/engine"
	"github.com/morozRed/medkb/internal/ingest"
	"github.com/morozRed/medkb/internal/search"
)

func BenchmarkCompile_MediumTable(b *testing.B) {
	rows, err := ingest.ReadRows(strings.NewReader(syntheticTable(250)))
	if err != nil {
		b.Fatalf("read failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out := ingest.Compile(rows, nil)
		if len(out.Diseases) != 250 {
			b.Fatalf("expected 250 diseases, got %d", len(out.Diseases))
		}
	}
}

func BenchmarkDiagnose_MediumKB(b *testing.B) {
	for _, backend := range []string{"native", "mangle"} {
		b.Run(backend, func(b *testing.B) {
			e := newSyntheticEngine(b, backend, 250)
			queries := [][]string{
				{"symptom_3", "symptom_4", "symptom_5"},
				{"symptom_40"},
				{"symptom_1", "symptom_999"},
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.Diagnose(queries[i%len(queries)]); err != nil {
					b.Fatalf("diagnose failed: %v", err)
				}
			}
		})
	}
}

func BenchmarkSymptomLookup_MediumKB(b *testing.B) {
	e := newSyntheticEngine(b, "native", 250)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if results := e.Search("symptom 12", search.KindSymptom, 10); len(results) == 0 {
			b.Fatalf("expected lookup results")
		}
	}
}

func newSyntheticEngine(tb testing.TB, backend string, diseases int) *engine.Engine {
	tb.Helper()
	e, err := engine.New(engine.Options{DataDir: tb.TempDir(), Evaluator: backend})
	if err != nil {
		tb.Fatalf("engine failed: %v", err)
	}
	if _, err := e.Ingest(strings.NewReader(syntheticTable(diseases)), nil); err != nil {
		tb.Fatalf("ingest failed: %v", err)
	}
	return e
}

// syntheticTable builds a disease/symptom CSV where disease i requires three
// consecutive symptoms, so neighbouring diseases overlap.
func syntheticTable(diseases int) string {
	var b strings.Builder
	b.WriteString("Disease,Symptom_1,Symptom_2,Symptom_3,Symptom_4\n")
	for i := 0; i < diseases; i++ {
		fmt.Fprintf(&b, "Disease %d,symptom_%d,symptom_%d,symptom_%d,\n", i, i, i+1, i+2)
	}
	return b.String()
}
