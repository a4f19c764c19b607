package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "showcase_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "showcase_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "showcase_workflow_transitions_total",
		Help: "Committed project status transitions by target status.",
	}, []string{"to"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "showcase_notifications_total",
		Help: "Notification attempts by channel and result (sent, skipped, failed).",
	}, []string{"channel", "result"})
)
