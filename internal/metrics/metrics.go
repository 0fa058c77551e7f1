package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_gw_requests_total",
			Help: "Total number of intake requests by route and outcome",
		},
		[]string{"route", "outcome"},
	)

	FieldsExtracted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_gw_fields_extracted",
			Help:    "Number of known fields found per payload",
			Buckets: prometheus.LinearBuckets(0, 2, 8),
		},
	)

	// Dispatch metrics
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_gw_dispatch_duration_seconds",
			Help:    "Duration of notification dispatch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	DispatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_gw_dispatch_errors_total",
			Help: "Total number of failed notification dispatches",
		},
		[]string{"channel"},
	)
)

// Request outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeDuplicate    = "duplicate"
	OutcomeUnauthorized = "unauthorized"
	OutcomeMalformed    = "malformed"
	OutcomeEmpty        = "empty"
	OutcomeTooLarge     = "too_large"
	OutcomeFailed       = "failed"
)
