package metrics

import (
	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics counts cart activity. A nil *CartMetrics is a valid no-op.
type CartMetrics struct {
	actions    *prometheus.CounterVec
	defects    *prometheus.CounterVec
	writes     *prometheus.CounterVec
	hydrations *prometheus.CounterVec
	sessions   prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_actions_total",
		Help: "Cart actions dispatched, by action type.",
	}, []string{"type"})
	defects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sanitize_defects_total",
		Help: "Product input problems absorbed by the sanitizer, by kind.",
	}, []string{"kind"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_snapshot_writes_total",
		Help: "Cart snapshot writes, by result.",
	}, []string{"result"})
	hydrations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_hydrations_total",
		Help: "Cart hydrations from storage, by outcome.",
	}, []string{"outcome"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_active_sessions",
		Help: "Carts currently held in memory.",
	})
	reg.MustRegister(actions, defects, writes, hydrations, sessions)
	return &CartMetrics{
		actions:    actions,
		defects:    defects,
		writes:     writes,
		hydrations: hydrations,
		sessions:   sessions,
	}
}

// IncAction counts one dispatched action.
func (m *CartMetrics) IncAction(actionType string) {
	if m == nil || m.actions == nil {
		return
	}
	m.actions.WithLabelValues(normalizeLabel(actionType)).Inc()
}

// ObserveDefects counts every defect in defects.
func (m *CartMetrics) ObserveDefects(defects []cart.Defect) {
	if m == nil || m.defects == nil {
		return
	}
	for _, d := range defects {
		m.defects.WithLabelValues(string(d.Kind)).Inc()
	}
}

// ObserveWrite implements cart.PersistObserver.
func (m *CartMetrics) ObserveWrite(err error) {
	if m == nil || m.writes == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.writes.WithLabelValues(result).Inc()
}

// ObserveHydrate implements cart.PersistObserver.
func (m *CartMetrics) ObserveHydrate(outcome cart.HydrateOutcome) {
	if m == nil || m.hydrations == nil {
		return
	}
	m.hydrations.WithLabelValues(normalizeLabel(string(outcome))).Inc()
}

// SetActiveSessions records how many carts are live.
func (m *CartMetrics) SetActiveSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}

var _ cart.PersistObserver = (*CartMetrics)(nil)
