// Package jobmetrics exposes Prometheus collectors driven by the
// engine's event bus, giving operators queue throughput and failure
// rates without coupling the engine's core packages to a metrics
// backend.
package jobmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kvqueue/jobqueue/events"
)

// Metrics holds the Prometheus collectors fed by a subscription to an
// events.Bus. Register it with a prometheus.Registerer, then call
// Run to start consuming events until ctx is canceled.
type Metrics struct {
	jobsTotal   *prometheus.CounterVec
	stallsTotal *prometheus.CounterVec
	pauseEvents *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	bus         *events.Bus
}

// New creates a Metrics instance bound to bus. Call Describe/Collect
// (via Register) to expose it, and Run to begin consuming events.
func New(bus *events.Bus) *Metrics {
	return &Metrics{
		bus: bus,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_jobs_total",
			Help: "Total number of job lifecycle transitions observed, by queue and outcome.",
		}, []string{"queue", "kind"}),
		stallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_stalls_total",
			Help: "Total number of jobs reclaimed by the stalled-job detector, by queue.",
		}, []string{"queue"}),
		pauseEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_pause_events_total",
			Help: "Total number of pause/resume transitions, by queue and direction.",
		}, []string{"queue", "direction"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_handler_errors_total",
			Help: "Total number of handler errors observed, by queue.",
		}, []string{"queue"}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.jobsTotal.Describe(ch)
	m.stallsTotal.Describe(ch)
	m.pauseEvents.Describe(ch)
	m.errorsTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.jobsTotal.Collect(ch)
	m.stallsTotal.Collect(ch)
	m.pauseEvents.Collect(ch)
	m.errorsTotal.Collect(ch)
}

// Run subscribes to the event bus and updates collectors until ctx is
// canceled. It blocks; call it from its own goroutine.
func (m *Metrics) Run(ctx context.Context) {
	sub := m.bus.Subscribe(256)
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			m.observe(ev)
		}
	}
}

func (m *Metrics) observe(ev events.Event) {
	switch ev.Kind {
	case events.Completed, events.Active, events.Waiting:
		m.jobsTotal.WithLabelValues(ev.Queue, string(ev.Kind)).Inc()
	case events.Failed:
		m.jobsTotal.WithLabelValues(ev.Queue, string(ev.Kind)).Inc()
		if _, ok := ev.Data["stall_count"]; ok {
			m.stallsTotal.WithLabelValues(ev.Queue).Inc()
		}
		if _, ok := ev.Data["error"]; ok {
			m.errorsTotal.WithLabelValues(ev.Queue).Inc()
		}
	case events.Stalled:
		m.stallsTotal.WithLabelValues(ev.Queue).Inc()
	case events.Error:
		m.errorsTotal.WithLabelValues(ev.Queue).Inc()
	case events.Paused:
		m.pauseEvents.WithLabelValues(ev.Queue, "pause").Inc()
	case events.Resumed:
		m.pauseEvents.WithLabelValues(ev.Queue, "resume").Inc()
	}
}
