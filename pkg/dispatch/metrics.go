package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a queued notification was not delivered.
const (
	dropOverflow   = "overflow"
	dropBroken     = "broken"
	dropError      = "callback_error"
	dropPanic      = "callback_panic"
	dropDisconnect = "disconnect"
	dropUnknown    = "unknown_client"
)

var (
	notificationsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paramtree_dispatch_emitted_total",
		Help: "Notifications queued for delivery, counted per subscriber",
	})

	notificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paramtree_dispatch_delivered_total",
		Help: "Notifications handed to a client callback without error",
	})

	notificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paramtree_dispatch_dropped_total",
		Help: "Notifications discarded before or during delivery by reason",
	}, []string{"reason"})

	clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paramtree_dispatch_clients",
		Help: "Clients currently known to the dispatcher, including broken ones not yet reaped",
	})

	deliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paramtree_dispatch_delivery_latency_seconds",
		Help:    "Time from emit to callback return",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
	})
)
