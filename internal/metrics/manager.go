package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterPlansGenerated     *prometheus.CounterVec
	CounterSessionReports     prometheus.Counter
	CounterAdjustments        *prometheus.CounterVec
	CounterAdjustmentsDropped prometheus.Counter

	// gauges
	GaugeAdjustQueue prometheus.Gauge

	// histograms
	HistRequestDuration    prometheus.Histogram
	HistGenerationDuration prometheus.Histogram
	HistAdjustDuration     prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("freecoach", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("freecoach", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterPlansGenerated := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plans_generated",
		Help:      "Plan generation attempts by outcome",
	}, []string{"outcome"})
	counterSessionReports := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_reports",
		Help:      "The total number of recorded session reports",
	})
	counterAdjustments := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "adjustments",
		Help:      "Completed adjustment jobs by action",
	}, []string{"action"})
	counterAdjustmentsDropped := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "adjustments_dropped",
		Help:      "Adjustment jobs dropped because the queue was full",
	})

	gaugeAdjustQueue := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "adjust_queue_length",
		Help:      "Adjustment jobs waiting for a worker",
	})

	histReqDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60, 120},
			Name:      "request_duration_seconds",
			Help:      "Total duration of requests in seconds",
		},
	)
	histGenerationDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
			Name:      "generation_duration_seconds",
			Help:      "Duration of model generation calls in seconds",
		},
	)
	histAdjustDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			Name:      "adjust_duration_seconds",
			Help:      "Duration of a single adjustment in seconds",
		},
	)

	return &Manager{
		CounterRequests:           counterRequests,
		CounterPlansGenerated:     counterPlansGenerated,
		CounterSessionReports:     counterSessionReports,
		CounterAdjustments:        counterAdjustments,
		CounterAdjustmentsDropped: counterAdjustmentsDropped,
		GaugeAdjustQueue:          gaugeAdjustQueue,
		HistRequestDuration:       histReqDuration,
		HistGenerationDuration:    histGenerationDuration,
		HistAdjustDuration:        histAdjustDuration,
	}
}
