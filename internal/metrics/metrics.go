// Package metrics holds the Prometheus collectors for bootstrap runs and the
// status server. Collectors live on their own registry so a run can be
// exported to a textfile or served over HTTP without touching the global one.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dbstarter"

// Bootstrap stage names used as label values.
const (
	StageLoad      = "load"
	StageAttach    = "attach"
	StageSchema    = "schema"
	StageLedger    = "ledger"
	StageIntegrity = "integrity"
	StageViews     = "views"
)

// Metrics is the set of collectors for one process.
type Metrics struct {
	Registry *prometheus.Registry

	// Bootstrap metrics
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	Tables        *prometheus.CounterVec
	Views         *prometheus.CounterVec
	LedgerActions *prometheus.CounterVec
	Integrity     *prometheus.CounterVec
	LastSuccess   prometheus.Gauge

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each bootstrap stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		StageFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Bootstrap stages that returned an error",
			},
			[]string{"stage"},
		),
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Bootstrap runs by result",
			},
			[]string{"result"},
		),
		Tables: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tables_total",
				Help:      "Tables handled by the schema resolver by outcome",
			},
			[]string{"outcome"},
		),
		Views: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "views_total",
				Help:      "Configured views by outcome",
			},
			[]string{"outcome"},
		),
		LedgerActions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_actions_total",
				Help:      "META ledger transitions",
			},
			[]string{"action", "version_changed"},
		),
		Integrity: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "integrity_checks_total",
				Help:      "SALT_CHECK comparisons by result",
			},
			[]string{"result"},
		),
		LastSuccess: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful bootstrap",
			},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
}

// ObserveStage records how long a stage took and whether it failed. A nil
// receiver records nothing.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRun counts a finished bootstrap.
func (m *Metrics) RecordRun(err error, at time.Time) {
	if m == nil {
		return
	}
	if err != nil {
		m.Runs.WithLabelValues("failure").Inc()
		return
	}
	m.Runs.WithLabelValues("success").Inc()
	m.LastSuccess.Set(float64(at.Unix()))
}

// RecordTables adds schema resolver outcomes.
func (m *Metrics) RecordTables(created, existing, degraded int) {
	if m == nil {
		return
	}
	m.Tables.WithLabelValues("created").Add(float64(created))
	m.Tables.WithLabelValues("existing").Add(float64(existing))
	m.Tables.WithLabelValues("degraded").Add(float64(degraded))
}

// RecordViews adds view synchronisation outcomes.
func (m *Metrics) RecordViews(created, existing int) {
	if m == nil {
		return
	}
	m.Views.WithLabelValues("created").Add(float64(created))
	m.Views.WithLabelValues("existing").Add(float64(existing))
}

// RecordLedger counts a ledger transition.
func (m *Metrics) RecordLedger(action string, versionChanged bool) {
	if m == nil {
		return
	}
	m.LedgerActions.WithLabelValues(action, strconv.FormatBool(versionChanged)).Inc()
}

// RecordIntegrity counts a SALT_CHECK comparison. result is "match",
// "mismatch" or "unavailable".
func (m *Metrics) RecordIntegrity(result string) {
	if m == nil {
		return
	}
	m.Integrity.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Middleware is a gin middleware that records HTTP metrics.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		m.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
	}
}
