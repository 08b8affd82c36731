// Package telemetry provides application-level observability for the portal backend.
//
// All metrics are registered against the default Prometheus registry and served on
// a side-channel HTTP server started by cmd/server (default port 9090, path
// /metrics). The endpoint is not part of the Gin router so it is never exposed
// through the public API ingress and is not subject to rate-limiting middleware.
//
// HTTP metrics use c.FullPath() (the route template, e.g. /api/v1/projects/:id)
// rather than the raw URL so user-supplied path segments cannot inflate label
// cardinality.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Identity and tenancy metrics.
var (
	// LoginAttemptsTotal counts login attempts by path ("admin", "client",
	// "oidc") and result ("success", "invalid_credentials", "invalid_or_used_key",
	// "error").
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdesk_login_attempts_total",
			Help: "Login attempts by path and result.",
		},
		[]string{"path", "result"},
	)

	// ClientKeysConsumedTotal counts successful one-time client key activations.
	ClientKeysConsumedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workdesk_client_keys_consumed_total",
			Help: "Client keys consumed by a successful first login.",
		},
	)

	// StaleLocksReleasedTotal counts client key locks force-released by the sweeper.
	StaleLocksReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workdesk_stale_locks_released_total",
			Help: "Client key locks force-released by the stale-lock sweeper.",
		},
	)

	// TenantAccessDeniedTotal counts requests rejected by tenant-scope authorization.
	TenantAccessDeniedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workdesk_tenant_access_denied_total",
			Help: "Requests denied because the principal was not allowed to touch the target tenant.",
		},
	)

	// PrincipalFallbackTotal counts requests where the tenant scope had to be
	// recovered from a degraded-mode signal (account role or email convention)
	// instead of durable session state. Nonzero values indicate session-state
	// loss and are worth alerting on.
	PrincipalFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdesk_principal_fallback_total",
			Help: "Principal resolutions that used a degraded-mode fallback, by fallback step.",
		},
		[]string{"step"},
	)
)

// Attachment storage metrics.
var (
	AttachmentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdesk_attachment_uploads_total",
			Help: "Attachment uploads by storage backend and result.",
		},
		[]string{"backend", "result"},
	)
)

// DBConnectionsOpen tracks the database connection pool, polled every 30s.
var DBConnectionsOpen = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_connections",
		Help: "Database connection pool state (open, in_use, idle).",
	},
	[]string{"state"},
)

// StartDBStatsCollector begins exporting sql.DB pool statistics to Prometheus.
// The goroutine runs for the life of the process.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			DBConnectionsOpen.WithLabelValues("open").Set(float64(stats.OpenConnections))
			DBConnectionsOpen.WithLabelValues("in_use").Set(float64(stats.InUse))
			DBConnectionsOpen.WithLabelValues("idle").Set(float64(stats.Idle))
		}
	}()
	slog.Debug("db stats collector started")
}
