package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for verification requests.
const (
	OutcomeBlocked    = "policy_blocked"
	OutcomeNoFace     = "extraction_failed"
	OutcomeTransient  = "service_unavailable"
	OutcomeNoMatch    = "not_recognized"
	OutcomeDuplicate  = "duplicate"
	OutcomePresent    = "present"
	OutcomeViolation  = "dress_violation"
	OutcomeStoreError = "store_error"
)

var (
	// VerificationOutcomes counts pipeline terminations by outcome.
	VerificationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartattend_verification_outcomes_total",
		Help: "Attendance verification requests by final outcome.",
	}, []string{"outcome"})

	// VerificationDuration observes end-to-end verification latency.
	VerificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartattend_verification_duration_seconds",
		Help:    "End-to-end latency of attendance verification requests.",
		Buckets: prometheus.DefBuckets,
	})

	// Enrollments counts successful student registrations.
	Enrollments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartattend_enrollments_total",
		Help: "Students enrolled.",
	})
)
