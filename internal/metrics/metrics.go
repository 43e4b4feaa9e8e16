package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docmerge_reconciliations_total",
		Help: "Template source reconciliations by outcome.",
	}, []string{"result"})

	VariablesDiscovered = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docmerge_variables_discovered",
		Help:    "Placeholders found per successful extraction.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docmerge_renders_total",
		Help: "Document renders by mode and outcome.",
	}, []string{"mode", "result"})

	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docmerge_render_duration_seconds",
		Help:    "Time spent producing a rendered artifact.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"mode"})

	AnswersWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docmerge_answers_written_total",
		Help: "Answer rows written.",
	})

	AnswerRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docmerge_answer_rejections_total",
		Help: "Answer saves rejected during validation.",
	}, []string{"reason"})
)
