package live

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus instruments for the polling loop.
type metrics struct {
	cycles       prometheus.Counter
	cycleErrors  prometheus.Counter
	barsIngested prometheus.Counter
	signals      *prometheus.CounterVec
	equity       prometheus.Gauge
	cycleTime    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_live_cycles_total",
			Help: "Completed polling cycles.",
		}),
		cycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_live_cycle_errors_total",
			Help: "Polling cycles that failed to fetch data.",
		}),
		barsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_live_bars_ingested_total",
			Help: "Closed bars appended to the in-memory series.",
		}),
		signals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_live_signals_total",
			Help: "Signals emitted, by direction.",
		}, []string{"direction"}),
		equity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_live_paper_equity",
			Help: "Paper portfolio equity marked at the latest closes.",
		}),
		cycleTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_live_cycle_duration_seconds",
			Help:    "Wall time of one polling cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *metrics) observeCycle(start time.Time) {
	m.cycles.Inc()
	m.cycleTime.Observe(time.Since(start).Seconds())
}

// ServeMetrics exposes the Prometheus endpoint on addr. It blocks until the
// server fails.
func ServeMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("serving metrics", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
