package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts messages through the dispatcher
type Metrics struct {
	Enqueued  prometheus.Counter
	Delivered prometheus.Counter
	Failed    prometheus.Counter
	Dropped   prometheus.Counter
	Queued    prometheus.Gauge
}

// NewMetrics creates the dispatcher metrics and registers them with reg when
// it is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harcapture",
			Subsystem: "transport",
			Name:      "enqueued_total",
			Help:      "Number of captured exchanges accepted for delivery.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harcapture",
			Subsystem: "transport",
			Name:      "delivered_total",
			Help:      "Number of captured exchanges delivered to the sink.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harcapture",
			Subsystem: "transport",
			Name:      "failed_total",
			Help:      "Number of captured exchanges the sink rejected.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harcapture",
			Subsystem: "transport",
			Name:      "dropped_total",
			Help:      "Number of captured exchanges dropped because the queue was full or closed.",
		}),
		Queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "harcapture",
			Subsystem: "transport",
			Name:      "queued",
			Help:      "Number of captured exchanges waiting for delivery.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Enqueued, m.Delivered, m.Failed, m.Dropped, m.Queued)
	}
	return m
}
