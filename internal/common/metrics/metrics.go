package metrics

import (
	"employability-workers/internal/common/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Pipeline counters.
var (
	PostingsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postings_accepted_total",
		Help: "Raw postings accepted for the first time",
	})

	PostingsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postings_duplicate_total",
		Help: "Raw postings skipped because their detail url was already ingested",
	})

	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_written_total",
			Help: "Canonical records persisted, by label",
		},
		[]string{"employable"},
	)

	MalformedFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raw_fields_malformed_total",
			Help: "Raw fields that degraded to their default during normalization",
		},
		[]string{"field"},
	)

	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Training runs by outcome",
		},
		[]string{"outcome"},
	)

	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Predictions served, by predicted label",
		},
		[]string{"label"},
	)
)

// ErrorLabel returns a low-cardinality label for err.
func ErrorLabel(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return "INTERNAL_ERROR"
}
