package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorn_claims_total",
			Help: "Claim attempts by outcome (won, conflict, not_found, error)",
		},
		[]string{"outcome"},
	)

	PicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorn_picks_total",
			Help: "Random pick attempts by outcome (found, empty, error)",
		},
		[]string{"outcome"},
	)

	MessagesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acorn_messages_created_total",
			Help: "Total number of sealed messages created",
		},
	)

	RepliesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acorn_replies_created_total",
			Help: "Total number of replies created",
		},
	)

	InboxMarkedRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acorn_inbox_marked_read_total",
			Help: "Replies flipped to read by received-inbox fetches",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acorn_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acorn_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(ClaimsTotal)
	prometheus.MustRegister(PicksTotal)
	prometheus.MustRegister(MessagesCreated)
	prometheus.MustRegister(RepliesCreated)
	prometheus.MustRegister(InboxMarkedRead)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
