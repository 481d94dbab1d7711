// Package prometheus provides Prometheus metrics for generated machines.
// The metrics are collected from the machine's transitions and its close.
//
// Exported metrics:
// - states amount
// - events amount
// - transitions, per event and result
// - transition time
// - current state
// - closes, per result
package prometheus

// import "github.com/pancsta/machinegen/pkg/telemetry/prometheus"

import (
	"errors"
	"regexp"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	am "github.com/pancsta/machinegen/pkg/machine"
	"github.com/pancsta/machinegen/pkg/spec"
)

const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
)

// Traceable is a machine which accepts tracers.
type Traceable interface {
	Id() string
	StateName() string
	AddTracer(t am.Tracer)
}

type promTracer struct {
	am.NoOpTracer

	m *Metrics
}

func (t *promTracer) TransitionEnd(tx *am.TransitionInfo) {
	t.m.mx.Lock()
	defer t.m.mx.Unlock()
	if t.m.closed {
		return
	}

	result := ResultAccepted
	if !tx.Accepted() {
		result = ResultRejected
	}
	t.m.Transitions.WithLabelValues(tx.Event, tx.Kind.String(), result).Inc()
	if !tx.Start.IsZero() && !tx.End.IsZero() {
		t.m.TxTime.Observe(tx.End.Sub(tx.Start).Seconds())
	}
	if tx.Accepted() && tx.Source != tx.Target {
		t.m.State.WithLabelValues(tx.Source).Set(0)
		t.m.State.WithLabelValues(tx.Target).Set(1)
	}
}

func (t *promTracer) MachineClose(_ am.Api, err error) {
	t.m.mx.Lock()
	defer t.m.mx.Unlock()
	if t.m.closed {
		return
	}

	switch {
	case err == nil:
		t.m.Closes.WithLabelValues(ResultSuccess).Inc()
	case errors.Is(err, am.ErrNotTerminal):
		t.m.Closes.WithLabelValues(ResultFailure).Inc()
	}
}

// Metrics is a set of Prometheus metrics for a single machine.
type Metrics struct {
	mx     sync.Mutex
	closed bool

	// //// mach definition

	// number of declared states
	StatesAmount prometheus.Gauge

	// number of declared events
	EventsAmount prometheus.Gauge

	// //// tx data

	// handled events, by event, kind and result
	Transitions *prometheus.CounterVec

	// transition time in seconds
	TxTime prometheus.Histogram

	// 1 for the current state, 0 for the others
	State *prometheus.GaugeVec

	// closes, by result
	Closes *prometheus.CounterVec
}

var reInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// NormalizeID returns a machine ID usable as a metric name part.
func NormalizeID(id string) string {
	return reInvalidChars.ReplaceAllString(id, "_")
}

func newMetrics(machID string) *Metrics {
	machID = NormalizeID(machID)

	return &Metrics{

		// /// mach definition

		StatesAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      "states_amount",
			Help:      "Number of declared states",
			Subsystem: machID,
			Namespace: "mach",
		}),
		EventsAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      "events_amount",
			Help:      "Number of declared events",
			Subsystem: machID,
			Namespace: "mach",
		}),

		// /// tx data

		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "transitions_total",
			Help:      "Handled events",
			Subsystem: machID,
			Namespace: "mach",
		}, []string{"event", "kind", "result"}),
		TxTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      "tx_time_seconds",
			Help:      "Transition time",
			Subsystem: machID,
			Namespace: "mach",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 7),
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "state",
			Help:      "Current state",
			Subsystem: machID,
			Namespace: "mach",
		}, []string{"state"}),
		Closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "closes_total",
			Help:      "Machine closes",
			Subsystem: machID,
			Namespace: "mach",
		}, []string{"result"}),
	}
}

// Collectors returns all the metrics, for registering.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.StatesAmount, m.EventsAmount, m.Transitions, m.TxTime, m.State,
		m.Closes,
	}
}

// Register registers all the metrics in reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range m.Collectors() {
		errs = append(errs, reg.Register(c))
	}

	return errors.Join(errs...)
}

// Close sets all gauges to 0 and stops collecting.
func (m *Metrics) Close() {
	m.mx.Lock()
	defer m.mx.Unlock()

	// close only once
	if m.closed {
		return
	}
	m.closed = true

	// set all gauges to 0
	m.StatesAmount.Set(0)
	m.EventsAmount.Set(0)
	m.State.Reset()
}

// TransitionsToPrometheus binds transitions of a machine to Prometheus
// metrics. def is the machine's definition, eg the generated Definition().
func TransitionsToPrometheus(mach Traceable, def *spec.Machine) *Metrics {
	metrics := newMetrics(mach.Id())

	metrics.StatesAmount.Set(float64(len(def.States)))
	metrics.EventsAmount.Set(float64(len(def.Events)))
	for _, name := range def.StateNames() {
		metrics.State.WithLabelValues(name).Set(0)
	}
	metrics.State.WithLabelValues(mach.StateName()).Set(1)

	mach.AddTracer(&promTracer{m: metrics})

	return metrics
}
