// Package metrics defines the Prometheus metrics exported by licverify.
// Metrics register with the default registry on package init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "licverify"

// Verification outcomes used as the "outcome" label.
const (
	OutcomeValid         = "valid"
	OutcomeHWIDMismatch  = "hwid_mismatch"
	OutcomeNotFound      = "not_found"
	OutcomeNotActive     = "not_active"
	OutcomeMalformed     = "malformed"
	OutcomeStorageError  = "storage_error"
	OutcomeBindConflict  = "bind_conflict"
	OutcomeUnknownFailed = "error"
)

// VerificationsTotal counts Verify calls by outcome.
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of license verifications, by outcome.",
	},
	[]string{"outcome"},
)

// BindsTotal counts conditional bind attempts.
// Label result is "won" when this call bound the license, "lost" otherwise.
var BindsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "binds_total",
		Help:      "Total number of first-activation bind attempts, by result.",
	},
	[]string{"result"},
)

// VerifyDuration measures Verify latency including store round trips.
var VerifyDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "verify_duration_seconds",
		Help:      "Duration of license verification.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

// LicensesGauge reports license counts by state (total, active, bound).
var LicensesGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "licenses",
		Help:      "Number of stored licenses, by state.",
	},
	[]string{"state"},
)

// ObserveVerify records a finished verification.
func ObserveVerify(outcome string, d time.Duration) {
	VerificationsTotal.WithLabelValues(outcome).Inc()
	VerifyDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveBind records a bind attempt.
func ObserveBind(won bool) {
	if won {
		BindsTotal.WithLabelValues("won").Inc()
		return
	}
	BindsTotal.WithLabelValues("lost").Inc()
}

// SetLicenseCounts publishes the latest license totals.
func SetLicenseCounts(total, active, bound int) {
	LicensesGauge.WithLabelValues("total").Set(float64(total))
	LicensesGauge.WithLabelValues("active").Set(float64(active))
	LicensesGauge.WithLabelValues("bound").Set(float64(bound))
}
