package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ingestedEventsCounter *prometheus.CounterVec
	decodeFailureCounter  *prometheus.CounterVec
	backfillBlockGauge    *prometheus.GaugeVec
}

func NewMetrics(namespace string) *Metrics {
	m := Metrics{
		ingestedEventsCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_ingested_events_total", namespace),
			Help: "Number of events appended to the event stores",
		}, []string{"kind", "source"}),
		decodeFailureCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_decode_failures_total", namespace),
			Help: "Number of webhook payloads that could not be decoded",
		}, []string{"kind"}),
		backfillBlockGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_backfill_block", namespace),
			Help: "The latest block number covered by the backfill scanner",
		}, []string{"kind"}),
	}
	return &m
}

func (metrics *Metrics) IncIngestedEvents(kind, source string) {
	metrics.ingestedEventsCounter.WithLabelValues(kind, source).Inc()
}

func (metrics *Metrics) IncDecodeFailures(kind string) {
	metrics.decodeFailureCounter.WithLabelValues(kind).Inc()
}

func (metrics *Metrics) SetBackfillBlock(kind string, block uint64) {
	metrics.backfillBlockGauge.WithLabelValues(kind).Set(float64(block))
}
