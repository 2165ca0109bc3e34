package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ticktr/internal/status"
)

// Monitor holds the lifecycle metrics. A nil *Monitor records nothing.
type Monitor struct {
	operations        *prometheus.CounterVec
	ticketsMinted     *prometheus.CounterVec
	remainingCapacity *prometheus.GaugeVec
	mintConflicts     prometheus.Counter
}

// NewMonitor registers the metrics on reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func NewMonitor(reg prometheus.Registerer) *Monitor {
	factory := promauto.With(reg)

	return &Monitor{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticktr_operations_total",
				Help: "Total lifecycle operations by outcome",
			},
			[]string{"operation", "status"},
		),
		ticketsMinted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticktr_tickets_minted_total",
				Help: "Tickets minted per event",
			},
			[]string{"event_id"},
		),
		remainingCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ticktr_event_remaining_capacity",
				Help: "Tickets that can still be minted per event",
			},
			[]string{"event_id"},
		),
		mintConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ticktr_mint_conflicts_total",
				Help: "Compare-and-swap conflicts while reserving ticket numbers",
			},
		),
	}
}

// TrackOperation counts one call of operation, labelled with the error kind.
func (m *Monitor) TrackOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, status.Kind(err)).Inc()
}

func (m *Monitor) TrackMint(eventID string, remaining uint64) {
	if m == nil {
		return
	}
	m.ticketsMinted.WithLabelValues(eventID).Inc()
	m.remainingCapacity.WithLabelValues(eventID).Set(float64(remaining))
}

func (m *Monitor) TrackCapacity(eventID string, remaining uint64) {
	if m == nil {
		return
	}
	m.remainingCapacity.WithLabelValues(eventID).Set(float64(remaining))
}

func (m *Monitor) TrackMintConflict() {
	if m == nil {
		return
	}
	m.mintConflicts.Inc()
}
