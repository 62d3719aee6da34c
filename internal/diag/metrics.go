package diag

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SolveBuckets covers solves from a millisecond to a minute.
var SolveBuckets = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60}

// Metrics turns records into Prometheus counters and histograms.
type Metrics struct {
	Solves        *prometheus.CounterVec
	SolveDuration prometheus.Histogram
	Steps         prometheus.Counter
	Failures      *prometheus.CounterVec
	Fallbacks     prometheus.Counter
}

// NewMetrics registers the collectors with reg. Collectors already
// registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Solves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daesim_solves_total",
				Help: "Completed solves",
			},
			[]string{"termination"},
		),
		SolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "daesim_solve_duration_seconds",
				Help:    "Solve duration",
				Buckets: SolveBuckets,
			},
		),
		Steps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "daesim_steps_total",
				Help: "Accepted integrator steps",
			},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daesim_failures_total",
				Help: "Integrator failures by flag",
			},
			[]string{"flag"},
		),
		Fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "daesim_fallback_evaluations_total",
				Help: "Variable evaluations on the fallback path",
			},
		),
	}

	var err error
	if m.Solves, err = register(reg, m.Solves); err != nil {
		return nil, err
	}
	if m.SolveDuration, err = register(reg, m.SolveDuration); err != nil {
		return nil, err
	}
	if m.Steps, err = register(reg, m.Steps); err != nil {
		return nil, err
	}
	if m.Failures, err = register(reg, m.Failures); err != nil {
		return nil, err
	}
	if m.Fallbacks, err = register(reg, m.Fallbacks); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) Record(event string, attrs ...any) {
	a := pairs(attrs)
	switch event {
	case EventSolveDone:
		term, _ := a["termination"].(string)
		m.Solves.WithLabelValues(term).Inc()
		if d, ok := a["duration"].(time.Duration); ok {
			m.SolveDuration.Observe(d.Seconds())
		}
	case EventStats:
		if n, ok := a["steps"].(int); ok {
			m.Steps.Add(float64(n))
		}
	case EventFailure:
		flag, _ := a["flag"].(string)
		m.Failures.WithLabelValues(flag).Inc()
	case EventFallback:
		m.Fallbacks.Inc()
	}
}
