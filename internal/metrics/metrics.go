package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "officeflow_verifications_total",
		Help: "Total number of presence verification attempts, labelled by flow and outcome.",
	}, []string{"flow", "outcome"})

	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "officeflow_rejections_total",
		Help: "Total number of rejected presence claims, labelled by flow and reason.",
	}, []string{"flow", "reason"})

	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "officeflow_attendance_events_total",
		Help: "Total number of attendance events recorded, labelled by type.",
	}, []string{"type"})

	DevicesBound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "officeflow_devices_bound_total",
		Help: "Total number of devices bound to identities on first use.",
	})

	EmbeddingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "officeflow_embedding_extraction_duration_seconds",
		Help:    "Latency of face embedding extraction calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "officeflow_identity_resolve_duration_seconds",
		Help:    "Latency of 1:N identity resolution over the employee population.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	ResolveScanSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "officeflow_identity_resolve_scan_size",
		Help:    "Number of enrolled identities compared per resolution; zero when the hint fast path applied.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "officeflow_http_request_duration_seconds",
		Help:    "HTTP request latency, labelled by route and status code.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route", "code"})
)
