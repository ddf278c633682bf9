package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Workflow struct {
	Placements  prometheus.Counter
	Resolutions *prometheus.CounterVec
	StaleTokens prometheus.Counter
	Timeouts    prometheus.Counter
	LatencyMS   *prometheus.HistogramVec
}

func New(service string) *Workflow {
	placements := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "orders_placed_total",
		Help:      "Total orders accepted for processing.",
	})
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "resolutions_total",
		Help:      "Decision submissions by kind.",
	}, []string{"kind"})
	staleTokens := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "stale_tokens_total",
		Help:      "Resolve calls rejected for an unknown or expired token.",
	})
	timeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "timeouts_total",
		Help:      "Timeout triggers processed.",
	})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(placements, resolutions, staleTokens, timeouts, latency)
	return &Workflow{
		Placements:  placements,
		Resolutions: resolutions,
		StaleTokens: staleTokens,
		Timeouts:    timeouts,
		LatencyMS:   latency,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
