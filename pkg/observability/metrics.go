package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric PGAdapter exports. A nil *Metrics
// disables recording entirely; all record methods are nil-safe so callers
// never branch on whether metrics are configured.
type Metrics struct {
	ClientConnectionsTotal  *prometheus.CounterVec
	ClientConnectionsActive *prometheus.GaugeVec

	StatementsTotal   *prometheus.CounterVec
	StatementDuration *prometheus.HistogramVec

	CopyRowsTotal  *prometheus.CounterVec
	CopyBytesTotal *prometheus.CounterVec

	DDLTranslationsTotal *prometheus.CounterVec

	ErrorsTotal          *prometheus.CounterVec
	InvalidMessagesTotal prometheus.Counter
}

// DefaultMetrics registers PGAdapter's metrics on the default Prometheus
// registry.
func DefaultMetrics() *Metrics {
	return &Metrics{
		ClientConnectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgadapter_client_connections_total",
				Help: "Total number of client connections accepted",
			},
			[]string{"database", "user"},
		),
		ClientConnectionsActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pgadapter_client_connections_active",
				Help: "Number of currently connected clients",
			},
			[]string{"database", "user"},
		),

		StatementsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgadapter_statements_total",
				Help: "Total number of statements executed, by statement kind",
			},
			[]string{"database", "kind", "status"},
		),
		StatementDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pgadapter_statement_duration_seconds",
				Help:    "Statement execution duration in seconds, including the backend call",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			},
			[]string{"database", "kind"},
		),

		CopyRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgadapter_copy_rows_total",
				Help: "Total number of rows written through COPY FROM STDIN",
			},
			[]string{"database", "table"},
		),
		CopyBytesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgadapter_copy_bytes_total",
				Help: "Total COPY payload bytes received from clients",
			},
			[]string{"database", "table"},
		),

		DDLTranslationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgadapter_ddl_translations_total",
				Help: "Total DDL statements translated, by outcome (executed or skipped by IF [NOT] EXISTS)",
			},
			[]string{"database", "outcome"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgadapter_errors_total",
				Help: "Total ErrorResponses sent to clients, by SQLSTATE",
			},
			[]string{"sqlstate"},
		),
		InvalidMessagesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pgadapter_invalid_messages_total",
				Help: "Total protocol messages skipped due to protocol or mode violations",
			},
		),
	}
}

// RecordClientConnection counts a newly authenticated client.
func (m *Metrics) RecordClientConnection(database, user string) {
	if m == nil {
		return
	}
	m.ClientConnectionsTotal.WithLabelValues(database, user).Inc()
	m.ClientConnectionsActive.WithLabelValues(database, user).Inc()
}

// RecordClientDisconnect marks an authenticated client as gone.
func (m *Metrics) RecordClientDisconnect(database, user string) {
	if m == nil {
		return
	}
	m.ClientConnectionsActive.WithLabelValues(database, user).Dec()
}

// RecordStatement records one statement execution.
func (m *Metrics) RecordStatement(database, kind string, durationSeconds float64, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.StatementsTotal.WithLabelValues(database, kind, status).Inc()
	m.StatementDuration.WithLabelValues(database, kind).Observe(durationSeconds)
}

// RecordCopy records a completed COPY FROM STDIN transfer.
func (m *Metrics) RecordCopy(database, table string, rows, bytes int64) {
	if m == nil {
		return
	}
	m.CopyRowsTotal.WithLabelValues(database, table).Add(float64(rows))
	m.CopyBytesTotal.WithLabelValues(database, table).Add(float64(bytes))
}

// RecordDDLTranslation records one DDL statement's translation outcome.
func (m *Metrics) RecordDDLTranslation(database string, skipped bool) {
	if m == nil {
		return
	}
	outcome := "executed"
	if skipped {
		outcome = "skipped"
	}
	m.DDLTranslationsTotal.WithLabelValues(database, outcome).Inc()
}

// RecordError counts one ErrorResponse by its SQLSTATE.
func (m *Metrics) RecordError(sqlstate string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(sqlstate).Inc()
}

// RecordInvalidMessage counts one skipped protocol message.
func (m *Metrics) RecordInvalidMessage() {
	if m == nil {
		return
	}
	m.InvalidMessagesTotal.Inc()
}
