package metrics

import (
	"fmt"

	"wabulk/internal/bus"
	"wabulk/internal/domain"
)

var latencyBuckets = []float64{1, 5, 10, 20, 30, 60, 120}

// DeliveryMetrics turns run events into delivery counters.
type DeliveryMetrics struct {
	c               *MetricsCollector
	latency         *Histogram
	runs            *Counter
	runsFatal       *Counter
	warnings        *Counter
	attachmentBytes *Gauge
}

func NewDeliveryMetrics(c *MetricsCollector) *DeliveryMetrics {
	if c == nil {
		c = NewMetricsCollector()
	}
	return &DeliveryMetrics{
		c:               c,
		latency:         c.Histogram("wabulk_delivery_seconds", "Time spent delivering to one recipient", "", latencyBuckets),
		runs:            c.Counter("wabulk_runs_total", "Completed runs", ""),
		runsFatal:       c.Counter("wabulk_runs_aborted_total", "Runs that stopped on a fatal error", ""),
		warnings:        c.Counter("wabulk_resource_warnings_total", "Staged files that could not be cleaned up", ""),
		attachmentBytes: c.Gauge("wabulk_attachment_bytes", "Size of the last validated attachment", ""),
	}
}

// Collector returns the underlying collector.
func (m *DeliveryMetrics) Collector() *MetricsCollector { return m.c }

// Deliveries returns the counter for one delivery status.
func (m *DeliveryMetrics) Deliveries(status domain.DeliveryStatus) *Counter {
	return m.c.Counter("wabulk_deliveries_total", "Recipients processed by outcome",
		fmt.Sprintf("status=%q", string(status)))
}

// Record accounts for one outcome.
func (m *DeliveryMetrics) Record(o domain.DeliveryOutcome) {
	m.Deliveries(o.Status).Inc()
	if o.Status != domain.StatusSkipped {
		m.latency.Observe(o.Duration.Seconds())
	}
}

// Observe subscribes to eb and returns a function that unsubscribes.
func (m *DeliveryMetrics) Observe(eb *bus.EventBus) func() {
	subs := map[string]string{
		bus.EventDeliveryOutcome: eb.On(bus.EventDeliveryOutcome, func(e bus.Event) {
			if o, ok := e.Payload.(domain.DeliveryOutcome); ok {
				m.Record(o)
			}
		}),
		bus.EventAttachmentValidated: eb.On(bus.EventAttachmentValidated, func(e bus.Event) {
			if a, ok := e.Payload.(domain.Attachment); ok {
				m.attachmentBytes.Set(a.SizeBytes)
			}
		}),
		bus.EventResourceWarning: eb.On(bus.EventResourceWarning, func(bus.Event) {
			m.warnings.Inc()
		}),
		bus.EventRunCompleted: eb.On(bus.EventRunCompleted, func(e bus.Event) {
			m.runs.Inc()
			if s, ok := e.Payload.(domain.Summary); ok && s.Fatal != "" {
				m.runsFatal.Inc()
			}
		}),
	}
	return func() {
		for eventType, id := range subs {
			eb.Off(eventType, id)
		}
	}
}
