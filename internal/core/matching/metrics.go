package order_matching

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors an Engine reports through.
// Wiring is optional: an Engine built without metrics simply skips the
// observations rather than requiring a registry at construction time.
type Metrics struct {
	ordersSubmitted *prometheus.CounterVec
	tradesExecuted  *prometheus.CounterVec
	bookDepth       *prometheus.GaugeVec
	submissionsPoisoned *prometheus.CounterVec
}

// NewMetrics constructs and registers the engine's collectors against
// reg. Passing the same registry for multiple engines is expected; the
// symbol label disambiguates series.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobcore",
			Subsystem: "matching",
			Name:      "orders_submitted_total",
			Help:      "Orders accepted by the matching engine, by symbol and side.",
		}, []string{"symbol", "side"}),
		tradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobcore",
			Subsystem: "matching",
			Name:      "trades_executed_total",
			Help:      "Trades executed by the matching engine, by symbol.",
		}, []string{"symbol"}),
		bookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lobcore",
			Subsystem: "matching",
			Name:      "book_price_levels",
			Help:      "Current number of distinct price levels per side.",
		}, []string{"symbol", "side"}),
		submissionsPoisoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobcore",
			Subsystem: "matching",
			Name:      "engine_poisoned_total",
			Help:      "Count of times a symbol's engine transitioned to the poisoned state.",
		}, []string{"symbol"}),
	}
	reg.MustRegister(m.ordersSubmitted, m.tradesExecuted, m.bookDepth, m.submissionsPoisoned)
	return m
}

// ObserveSubmission records one accepted submission and its resulting
// trade count.
func (m *Metrics) ObserveSubmission(symbol string, side Side, trades int) {
	if m == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(symbol, side.String()).Inc()
	if trades > 0 {
		m.tradesExecuted.WithLabelValues(symbol).Add(float64(trades))
	}
}

// ObserveDepth records the current number of price levels on each side.
func (m *Metrics) ObserveDepth(symbol string, bidLevels, askLevels int) {
	if m == nil {
		return
	}
	m.bookDepth.WithLabelValues(symbol, "buy").Set(float64(bidLevels))
	m.bookDepth.WithLabelValues(symbol, "sell").Set(float64(askLevels))
}

// ObservePoisoned records a symbol engine transitioning to the poisoned
// state.
func (m *Metrics) ObservePoisoned(symbol string) {
	if m == nil {
		return
	}
	m.submissionsPoisoned.WithLabelValues(symbol).Inc()
}
