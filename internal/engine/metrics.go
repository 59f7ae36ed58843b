package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// diagnosesTotal counts diagnosis calls.
	// Labels: evaluator, mode (exact, subset_probe, none, error)
	diagnosesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medkb",
		Subsystem: "engine",
		Name:      "diagnoses_total",
		Help:      "Total diagnosis calls by evaluator and resulting mode",
	}, []string{"evaluator", "mode"})

	diagnoseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medkb",
		Subsystem: "engine",
		Name:      "diagnose_duration_seconds",
		Help:      "Diagnosis latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"evaluator"})

	// mutationsTotal counts knowledge mutations.
	// Labels: op (add_symptom, add_disease, ingest), result (ok or an error kind)
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medkb",
		Subsystem: "engine",
		Name:      "mutations_total",
		Help:      "Total knowledge base mutations by operation and result",
	}, []string{"op", "result"})

	reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medkb",
		Subsystem: "engine",
		Name:      "reloads_total",
		Help:      "Total knowledge base reloads by result",
	}, []string{"result"})

	// knowledgeSize reports the loaded snapshot.
	// Labels: entity (diseases, symptoms)
	knowledgeSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "medkb",
		Subsystem: "engine",
		Name:      "knowledge_entries",
		Help:      "Entries in the loaded knowledge base",
	}, []string{"entity"})
)
