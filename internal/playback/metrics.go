package playback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipster_requests_total",
		Help: "Play requests by terminal outcome",
	}, []string{"outcome"})

	metricSkipVotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipster_skip_votes_total",
		Help: "Skip votes by result",
	}, []string{"outcome"})

	metricIdleDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipster_idle_disconnects_total",
		Help: "Voice connections closed after inactivity",
	})

	metricActiveTenants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipster_active_tenants",
		Help: "Guilds with a running playback loop",
	})

	metricQueueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clipster_queue_wait_seconds",
		Help:    "Time between submit and activation",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
)
