package assistant

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

// Turn outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeFallback    = "fallback"
	OutcomeEngineError = "engine_error"
	OutcomeDegraded    = "degraded"
	OutcomeStoreError  = "store_error"
)

type Metrics struct {
	Turns           *prometheus.CounterVec
	ToolInvocations *prometheus.CounterVec
	Fallbacks       *prometheus.CounterVec
	EngineDuration  prometheus.Histogram
}

// NewMetrics creates the assistant collectors and registers them on reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finn_turns_total",
			Help: "Chat turns processed, by outcome.",
		}, []string{"outcome"}),
		ToolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finn_tool_invocations_total",
			Help: "Tool gateway invocations, by tool and status.",
		}, []string{"tool", "status"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finn_fallbacks_total",
			Help: "Replies replaced by a fixed apology, by intent.",
		}, []string{"intent"}),
		EngineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "finn_engine_duration_seconds",
			Help:    "Time spent in the reasoning engine per turn.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Turns, m.ToolInvocations, m.Fallbacks, m.EngineDuration)
	}
	return m
}

func (m *Metrics) turn(outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) fallback(intent string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(intent).Inc()
}

func (m *Metrics) engineSeconds(s float64) {
	if m == nil {
		return
	}
	m.EngineDuration.Observe(s)
}

func (m *Metrics) tools(invs []model.ToolInvocation) {
	if m == nil {
		return
	}
	for _, inv := range invs {
		status := "ok"
		switch {
		case inv.Failed():
			status = "error"
		case inv.Empty:
			status = "empty"
		}
		m.ToolInvocations.WithLabelValues(inv.Name, status).Inc()
	}
}
