package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paramtree_remote_requests_total",
		Help: "Requests answered by the remote server by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paramtree_remote_request_duration_seconds",
		Help:    "Time from request decode to response send",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 9),
	}, []string{"operation"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paramtree_remote_sessions",
		Help: "Open remote sessions",
	})

	authFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paramtree_remote_auth_failures_total",
		Help: "Connections closed after a failed authentication",
	})

	notificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paramtree_remote_notifications_sent_total",
		Help: "Notifications written to remote sessions",
	})
)
