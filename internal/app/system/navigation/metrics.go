package navigation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for route resolution. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Navigation outcomes by kind: one "redirect" per hop followed, then the
	// terminal "render", "render_guarded" or "not_found"
	Outcomes *prometheus.CounterVec

	// Guard verdicts by guard id and result ("approve", "deny", "error")
	GuardDecisions *prometheus.CounterVec

	// Module cache lookups by result ("hit", "miss", "shared")
	ModuleCache *prometheus.CounterVec

	// Module fetch latency by module and status
	ModuleLoadLatency *prometheus.HistogramVec

	// Navigations discarded because a newer one started
	Superseded prometheus.Counter
}

// NewMetrics creates the navigation metrics and registers them with reg.
// Passing nil creates unregistered collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topaz_navigation_outcomes_total",
			Help: "Navigation outcomes by kind, counting each redirect hop",
		}, []string{"kind"}),

		GuardDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topaz_navigation_guard_decisions_total",
			Help: "Guard verdicts by guard and result",
		}, []string{"guard", "result"}),

		ModuleCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topaz_navigation_module_cache_total",
			Help: "Module cache lookups by result",
		}, []string{"result"}),

		ModuleLoadLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "topaz_navigation_module_load_duration_seconds",
			Help:    "Duration of lazy module fetches",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"module", "status"}),

		Superseded: f.NewCounter(prometheus.CounterOpts{
			Name: "topaz_navigation_superseded_total",
			Help: "Navigations discarded because a newer navigation started",
		}),
	}
}

func (m *Metrics) incOutcome(kind OutcomeKind) {
	if m != nil {
		m.Outcomes.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) incGuard(guard, result string) {
	if m != nil {
		m.GuardDecisions.WithLabelValues(guard, result).Inc()
	}
}

func (m *Metrics) incModuleCache(result string) {
	if m != nil {
		m.ModuleCache.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) observeModuleLoad(ref ModuleRef, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModuleLoadLatency.WithLabelValues(string(ref), status).Observe(d.Seconds())
}

func (m *Metrics) incSuperseded() {
	if m != nil {
		m.Superseded.Inc()
	}
}
