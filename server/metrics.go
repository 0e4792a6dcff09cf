package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Verifications        *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	WebsocketConnections prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tlsn_verifications_total",
			Help: "Total number of presentation verifications by outcome",
		}, []string{"source", "outcome"}),
		VerificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tlsn_verification_duration_seconds",
			Help:    "Duration of presentation verification including response checks",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		WebsocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tlsn_websocket_connections",
			Help: "Number of open websocket connections",
		}),
	}
}

func (m *Metrics) ObserveVerification(source, outcome string, start time.Time) {
	m.Verifications.WithLabelValues(source, outcome).Inc()
	m.VerificationDuration.Observe(time.Since(start).Seconds())
}
