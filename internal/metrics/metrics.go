// Package metrics records operational metrics of sync runs behind a small,
// backend-agnostic interface.
//
// The active backend is process-global and defaults to a no-op, so the
// recording helpers are always safe to call. Concrete systems live in
// subpackages (prompush for a Prometheus Pushgateway, datadog for DogStatsD)
// and are installed with SetBackend before a run starts.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	StepTotal       = "bizsync_step_total"
	StepDuration    = "bizsync_step_duration_seconds"
	RecordsTotal    = "bizsync_records_total"
	StatementsTotal = "bizsync_statements_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one pipeline stage execution and its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta records of the given kind. Kinds mirror the run
// counters: "records", "new", "existing", "skipped", "written".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches adds delta executed statements against table.
func RecordBatches(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(StatementsTotal, float64(delta), Labels{"job": job, "table": table})
}
