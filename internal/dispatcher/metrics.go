package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webhook",
		Name:      "deliveries_total",
		Help:      "Delivery attempts by outcome.",
	}, []string{"outcome"})

	deliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "webhook",
		Name:      "delivery_duration_seconds",
		Help:      "Time spent delivering a payload to a subscriber endpoint.",
		Buckets:   prometheus.DefBuckets,
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "webhook",
		Name:      "queue_depth",
		Help:      "Jobs currently waiting in the delivery queue.",
	})
)
