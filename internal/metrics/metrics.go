// Package metrics exports engine activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/uispec/internal/engine"
)

const namespace = "uispec"

// Collectors counts patches, diagnostics and action outcomes. It implements
// engine.Observer; pass it with engine.WithMetrics.
type Collectors struct {
	PatchesApplied   *prometheus.CounterVec
	PatchesMalformed prometheus.Counter
	Diagnostics      *prometheus.CounterVec
	Actions          *prometheus.CounterVec
	State            prometheus.Gauge
}

var _ engine.Observer = (*Collectors)(nil)

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		PatchesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_applied_total",
			Help:      "Patches applied to the UI tree, by op.",
		}, []string{"op"}),
		PatchesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_malformed_total",
			Help:      "Stream frames rejected as malformed.",
		}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics raised while streaming, rendering and dispatching, by code.",
		}, []string{"code"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Resolved action invocations, by action name and outcome.",
		}, []string{"name", "outcome"}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_state",
			Help:      "Current stream state: 0 empty, 1 building, 2 settled, 3 aborted.",
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.PatchesApplied, c.PatchesMalformed, c.Diagnostics, c.Actions, c.State} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is New that panics on a registration conflict.
func MustNew(reg prometheus.Registerer) *Collectors {
	c, err := New(reg)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Collectors) PatchApplied(op string) {
	c.PatchesApplied.WithLabelValues(op).Inc()
}

func (c *Collectors) PatchMalformed() {
	c.PatchesMalformed.Inc()
}

func (c *Collectors) Diagnostic(code engine.Code) {
	if code == "" {
		code = "UNKNOWN"
	}
	c.Diagnostics.WithLabelValues(string(code)).Inc()
}

func (c *Collectors) ActionResolved(name, outcome string) {
	c.Actions.WithLabelValues(name, outcome).Inc()
}

func (c *Collectors) StreamState(state engine.StreamState) {
	c.State.Set(float64(state))
}
