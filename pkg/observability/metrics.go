// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the missive message service.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route group.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missive_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route group.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "missive_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ActiveRequests tracks the number of requests currently being served.
	ActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "missive_requests_active",
			Help: "Active requests",
		},
	)

	// AuthFailuresTotal counts rejected gateway credentials by reason.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missive_auth_failures_total",
			Help: "Rejected credentials",
		},
		[]string{"reason"},
	)

	// OwnershipDenialsTotal counts project-scoped requests refused because
	// the caller does not own the project.
	OwnershipDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "missive_ownership_denials_total",
			Help: "Ownership denials",
		},
	)

	// PasswordChecksTotal counts message password checks by operation and outcome.
	PasswordChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missive_password_checks_total",
			Help: "Message password checks",
		},
		[]string{"operation", "outcome"},
	)

	// AttachmentBytesTotal counts attachment bytes by direction (upload/download).
	AttachmentBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missive_attachment_bytes_total",
			Help: "Attachment bytes transferred",
		},
		[]string{"direction"},
	)

	// RateLimitRejectedTotal counts password attempts rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missive_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ActiveRequests,
		AuthFailuresTotal,
		OwnershipDenialsTotal,
		PasswordChecksTotal,
		AttachmentBytesTotal,
		RateLimitRejectedTotal,
	)
}
