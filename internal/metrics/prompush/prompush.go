// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Sync runs are short-lived batch jobs, so instead of exposing a scrape
// endpoint the collected registry is pushed to a Pushgateway on Flush. The
// Pushgateway "job" grouping key carries the job label; step, status, kind
// and table become Prometheus labels.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"bizsync/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter      *prometheus.CounterVec
	stepDuration     *prometheus.SummaryVec
	recordCounter    *prometheus.CounterVec
	statementCounter *prometheus.CounterVec
}

// NewBackend constructs a Pushgateway backend pushing under jobName to
// gatewayURL (e.g. http://pushgateway:9091).
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "bizsync"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline stage duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Input records by outcome kind (records, new, existing, skipped, written).",
		}, []string{"kind"}),
		statementCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StatementsTotal,
			Help: "Write statements executed per destination table.",
		}, []string{"table"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":      b.stepCounter,
		"step summary":      b.stepDuration,
		"record counter":    b.recordCounter,
		"statement counter": b.statementCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RecordsTotal:
		if b.recordCounter != nil {
			b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.StatementsTotal:
		if b.statementCounter != nil {
			b.statementCounter.WithLabelValues(labels["table"]).Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
