package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authapi_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authapi_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authapi_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	Ceremonies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authapi_webauthn_ceremonies_total",
			Help: "WebAuthn ceremony steps by ceremony, step and outcome.",
		},
		[]string{"ceremony", "step", "outcome"},
	)

	AppTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authapi_app_tokens_total",
			Help: "Application token operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	ChallengesSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authapi_challenges_swept_total",
		Help: "Expired challenges removed by the sweeper.",
	})
)

// Init registers every collector with the default registry. Call it once.
func Init() {
	prometheus.MustRegister(
		HTTPInFlight,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		Ceremonies,
		AppTokens,
		ChallengesSwept,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
