// Package telemetry provides application-level observability for ClassDesk.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<CDK_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format and is intended to be scraped every 15–60 seconds.  It is NOT served by
// the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Invitation lifecycle counters (created, accepted, revoked, swept)
//   - Membership lifecycle counters and permission denial counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/orgs/:org_id/members)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as organization IDs or invitation tokens.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template, NOT the raw URL, to prevent
// unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
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

// Invitation lifecycle metrics.
//
// InvitationsCreatedTotal has a {role} label so operators can see which roles
// are being invited.  InvitationsAcceptedTotal counts successful accepts only;
// rejected accepts (expired, mismatched email, already accepted) land in
// InvitationAcceptFailuresTotal under a {reason} label, which is the signal to
// alert on for token-guessing attempts.
//
// Example PromQL queries:
//   - Accept conversion rate:  rate(invitations_accepted_total[24h]) / rate(invitations_created_total[24h])
//   - Guessing alert:          increase(invitation_accept_failures_total{reason="not_found"}[10m]) > 20
var (
	InvitationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invitations_created_total",
			Help: "Total number of invitations created, by granted role.",
		},
		[]string{"role"},
	)

	InvitationsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invitations_accepted_total",
			Help: "Total number of invitations successfully accepted.",
		},
	)

	InvitationAcceptFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invitation_accept_failures_total",
			Help: "Total number of rejected invitation accept attempts, by rejection reason.",
		},
		[]string{"reason"},
	)

	InvitationsRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invitations_revoked_total",
			Help: "Total number of invitations revoked by an administrator.",
		},
	)

	InvitationsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invitations_swept_total",
			Help: "Total number of expired invitations removed by the background sweeper.",
		},
	)
)

// Membership and authorization metrics.
//
// PermissionDenialsTotal has a {capability} label.  A sustained denial rate on a
// single capability usually means a client is running with a stale role.
var (
	MembershipsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memberships_created_total",
			Help: "Total number of memberships created, by role.",
		},
		[]string{"role"},
	)

	MembershipsRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memberships_removed_total",
			Help: "Total number of members removed from organizations.",
		},
	)

	PermissionDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_denials_total",
			Help: "Total number of requests denied by a capability check, by capability.",
		},
		[]string{"capability"},
	)
)

// InvitationEmailsSentTotal is a plain Counter incremented once per invitation
// email successfully handed to the SMTP server.  A stalled counter combined with
// a climbing invitations_created_total is the alert signal for delivery failures.
var InvitationEmailsSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "invitation_emails_sent_total",
		Help: "Total number of invitation emails successfully sent.",
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
