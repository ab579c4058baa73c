package engine

import (
	"go.opentelemetry.io/otel/metric"
)

// instruments holds the engine's OpenTelemetry counters.
type instruments struct {
	rounds       metric.Int64Counter
	evaluated    metric.Int64Counter
	approved     metric.Int64Counter
	rejected     metric.Int64Counter
	failsafe     metric.Int64Counter
	closed       metric.Int64Counter
	passDuration metric.Float64Histogram
}

func newInstruments(m metric.Meter) *instruments {
	// Instrument creation only fails on invalid names; the noop fallbacks
	// returned alongside the error are still usable.
	rounds, _ := m.Int64Counter("max_rounds_total",
		metric.WithDescription("Total number of discussion rounds run"))
	evaluated, _ := m.Int64Counter("max_items_evaluated_total",
		metric.WithDescription("Total number of checklist items scored"))
	approved, _ := m.Int64Counter("max_items_approved_total",
		metric.WithDescription("Total number of checklist items approved"))
	rejected, _ := m.Int64Counter("max_items_rejected_total",
		metric.WithDescription("Total number of checklist items rejected by the scorer"))
	failsafe, _ := m.Int64Counter("max_failsafe_rejections_total",
		metric.WithDescription("Total number of items rejected by a failsafe (floor, timeout, round cap)"))
	closed, _ := m.Int64Counter("max_discussions_closed_total",
		metric.WithDescription("Total number of discussions closed"))
	passDuration, _ := m.Float64Histogram("max_evaluation_pass_seconds",
		metric.WithDescription("Duration of evaluation passes in seconds"),
		metric.WithUnit("s"))

	return &instruments{
		rounds:       rounds,
		evaluated:    evaluated,
		approved:     approved,
		rejected:     rejected,
		failsafe:     failsafe,
		closed:       closed,
		passDuration: passDuration,
	}
}
