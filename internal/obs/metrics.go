package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the saga counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	OrdersAccepted    prometheus.Counter
	OrdersRejected    *prometheus.CounterVec
	EventsPublished   prometheus.Counter
	PublishFailures   prometheus.Counter
	StockApplied      prometheus.Counter
	MessagesDropped   *prometheus.CounterVec
	DuplicatesSkipped prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_accepted_total", Help: "Orders durably recorded.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_rejected_total", Help: "Orders rejected before commit.",
		}, []string{"reason"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_events_published_total", Help: "Stock-change events acknowledged by the queue.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_events_publish_failures_total", Help: "Stock-change publishes that failed.",
		}),
		StockApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_changes_applied_total", Help: "Stock-change events applied to products.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_messages_dropped_total", Help: "Stock-change messages dropped without applying.",
		}, []string{"reason"}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_messages_duplicates_total", Help: "Redelivered stock-change messages skipped by dedup.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.OrdersAccepted, m.OrdersRejected, m.EventsPublished, m.PublishFailures,
			m.StockApplied, m.MessagesDropped, m.DuplicatesSkipped)
	}
	return m
}

func (m *Metrics) OrderAccepted() {
	if m != nil {
		m.OrdersAccepted.Inc()
	}
}

func (m *Metrics) OrderRejected(reason string) {
	if m != nil {
		m.OrdersRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Published() {
	if m != nil {
		m.EventsPublished.Inc()
	}
}

func (m *Metrics) PublishFailed() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) Applied() {
	if m != nil {
		m.StockApplied.Inc()
	}
}

func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.MessagesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Duplicate() {
	if m != nil {
		m.DuplicatesSkipped.Inc()
	}
}
