package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cost governance Prometheus metrics.
var (
	ExchangeFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costgate",
			Name:      "exchange_fetches_total",
			Help:      "Total exchange rate fetch attempts",
		},
		[]string{"provider", "status"}, // status: success / error / out_of_band
	)

	ExchangeRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "costgate",
			Name:      "exchange_rate",
			Help:      "Current cached USD to local currency rate",
		},
	)

	QuotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costgate",
			Name:      "quota_checks_total",
			Help:      "Total weekly quota checks",
		},
		[]string{"result"}, // "allowed" / "denied"
	)

	UsageRecordedCents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costgate",
			Name:      "usage_recorded_cents_total",
			Help:      "Total recorded spend in minor currency units",
		},
		[]string{"operation"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costgate",
			Name:      "ai_requests_total",
			Help:      "Total metered AI requests",
		},
		[]string{"model", "status"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "costgate",
			Name:      "ai_request_duration_seconds",
			Help:      "Metered AI request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	AITokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costgate",
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"model", "type"}, // type: input / output
	)
)

var governanceMetricsRegistered bool

// RegisterGovernanceMetrics registers Prometheus governance metrics. Must be called once from main.
func RegisterGovernanceMetrics() {
	if governanceMetricsRegistered {
		return
	}
	prometheus.MustRegister(ExchangeFetchesTotal)
	prometheus.MustRegister(ExchangeRate)
	prometheus.MustRegister(QuotaChecksTotal)
	prometheus.MustRegister(UsageRecordedCents)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(AITokensTotal)
	governanceMetricsRegistered = true
}
