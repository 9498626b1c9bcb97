package natskit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	published    prometheus.Counter
	delivered    prometheus.Counter
	acked        prometheus.Counter
	decodeErrors prometheus.Counter
	inflight     prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, flow *gate) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &metrics{
		published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "buskit",
			Name:      "published_total",
			Help:      "Envelopes published to the stream service.",
		}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "buskit",
			Name:      "delivered_total",
			Help:      "Messages delivered to the broadcast hub.",
		}),
		acked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "buskit",
			Name:      "acked_total",
			Help:      "Messages acknowledged to the stream service.",
		}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "buskit",
			Name:      "decode_errors_total",
			Help:      "Inbound payloads that failed to decode.",
		}),
		inflight: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "buskit",
			Name:      "inflight",
			Help:      "Unacknowledged deliveries currently in flight.",
		}, func() float64 { return float64(flow.Inflight()) }),
	}
}
