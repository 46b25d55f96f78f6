package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes dispatcher throughput counters to prometheus. All methods
// are nil-safe so the dispatcher can run without a registry in tests.
type Metrics struct {
	submitted prometheus.Counter
	completed prometheus.Counter
	dropped   prometheus.Counter
	filtered  prometheus.Counter
}

// NewMetrics registers the dispatcher counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bastion",
			Subsystem: "audit",
			Name:      "records_submitted_total",
			Help:      "Audit records accepted into the dispatch queue.",
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bastion",
			Subsystem: "audit",
			Name:      "records_completed_total",
			Help:      "Audit records delivered to the reporter gateway.",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bastion",
			Subsystem: "audit",
			Name:      "records_dropped_total",
			Help:      "Audit records rejected or evicted under backpressure.",
		}),
		filtered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bastion",
			Subsystem: "audit",
			Name:      "records_filtered_total",
			Help:      "Audit records excluded by the type filter.",
		}),
	}
}

func (m *Metrics) incSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) incCompleted() {
	if m != nil {
		m.completed.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) incFiltered() {
	if m != nil {
		m.filtered.Inc()
	}
}
