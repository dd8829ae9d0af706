// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A copy run is a batch job with nothing to scrape, so
// collected metrics are pushed once when the run ends.
package prompush

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	tables   *prometheus.CounterVec // tablecopy_tables_total{plan,status}
	rows     *prometheus.CounterVec // tablecopy_rows_total{plan,table}
	duration *prometheus.HistogramVec
}

// NewBackend constructs a backend pushing to gatewayURL under jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "tablecopy"
	}

	reg := prometheus.NewRegistry()
	tables := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecopy_tables_total",
			Help: "Tables processed, partitioned by plan and outcome.",
		},
		[]string{"plan", "status"},
	)
	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecopy_rows_total",
			Help: "Rows inserted at the destination, partitioned by plan and table.",
		},
		[]string{"plan", "table"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablecopy_table_duration_seconds",
			Help:    "Wall time spent per table, partitioned by outcome.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"status"},
	)

	for _, c := range []prometheus.Collector{tables, rows, duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        reg,
		tables:     tables,
		rows:       rows,
		duration:   duration,
	}, nil
}

func (b *Backend) ObserveTable(plan, table, status string, n int, d time.Duration) {
	b.tables.WithLabelValues(plan, status).Inc()
	if n > 0 {
		b.rows.WithLabelValues(plan, table).Add(float64(n))
	}
	b.duration.WithLabelValues(status).Observe(d.Seconds())
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
