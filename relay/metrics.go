package relay

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusRelayInvocations   prometheus.Counter
	prometheusRelayHeaderOutcome *prometheus.CounterVec
	prometheusRelayPassOutcome   *prometheus.CounterVec
	prometheusRelayBroadcast     *prometheus.CounterVec
	prometheusRelayTxPushed      prometheus.Counter
	prometheusRelayFetchErrors   *prometheus.CounterVec
	prometheusRelayCheckpoint    prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusRelayInvocations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "btcrelay",
			Subsystem: "driver",
			Name:      "invocations",
			Help:      "Number of relay invocations that ran",
		},
	)

	prometheusRelayHeaderOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btcrelay",
			Subsystem: "header",
			Name:      "outcome",
			Help:      "Header stage outcomes",
		},
		[]string{"outcome"},
	)

	prometheusRelayPassOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btcrelay",
			Subsystem: "filter",
			Name:      "pass_outcome",
			Help:      "Filter and push pass outcomes",
		},
		[]string{"outcome"},
	)

	prometheusRelayBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btcrelay",
			Subsystem: "broadcast",
			Name:      "result",
			Help:      "Withdrawal broadcast results",
		},
		[]string{"result"},
	)

	prometheusRelayTxPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "btcrelay",
			Subsystem: "filter",
			Name:      "tx_pushed",
			Help:      "Number of relayed transactions accepted by the ledger",
		},
	)

	prometheusRelayFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btcrelay",
			Subsystem: "explorer",
			Name:      "fetch_errors",
			Help:      "Failed explorer requests by stage",
		},
		[]string{"stage"},
	)

	prometheusRelayCheckpoint = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "btcrelay",
			Subsystem: "filter",
			Name:      "checkpoint",
			Help:      "Last confirmed height fully relayed",
		},
	)
}
