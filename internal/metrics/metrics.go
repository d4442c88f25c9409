package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	thumbnailOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneedit_thumbnail_validations_total",
		Help: "Thumbnail validation outcomes by reason (accepted or a rejection reason)",
	}, []string{"outcome"})

	staleValidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tuneedit_thumbnail_stale_validations_total",
		Help: "Validation results dropped because a newer pick started",
	})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneedit_submissions_total",
		Help: "Submission attempts by result",
	}, []string{"result"})

	backendAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneedit_backend_attempts_total",
		Help: "HTTP attempts against the bot backend by status code class",
	}, []string{"status"})

	submitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tuneedit_submit_duration_seconds",
		Help:    "Wall time of a submission including retries",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	sessionsLaunched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tuneedit_sessions_launched_total",
		Help: "Editor sessions launched",
	})
)

// RecordThumbnailOutcome counts an accepted upload or a rejection reason.
func RecordThumbnailOutcome(outcome string) {
	thumbnailOutcomes.WithLabelValues(outcome).Inc()
}

func RecordStaleValidation() {
	staleValidations.Inc()
}

// RecordSubmission counts a finished submission and its duration.
func RecordSubmission(result string, d time.Duration) {
	submissions.WithLabelValues(result).Inc()
	submitDuration.Observe(d.Seconds())
}

// RecordBackendAttempt counts a single HTTP round trip. status is the
// response code, or "error" for transport failures.
func RecordBackendAttempt(status string) {
	backendAttempts.WithLabelValues(status).Inc()
}

func RecordSessionLaunched() {
	sessionsLaunched.Inc()
}
