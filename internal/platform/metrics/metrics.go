// Package metrics provides observability for the lifecycle server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the lifecycle engine.
type Metrics struct {
	ArrestsTotal      *prometheus.CounterVec
	BookingsCompleted prometheus.Counter
	BookingsAborted   prometheus.Counter
	ReleasesTotal     *prometheus.CounterVec
	BailPaymentsTotal prometheus.Counter
	FinePaymentsTotal prometheus.Counter
	ParoleSearches    *prometheus.CounterVec
	ParoleViolations  prometheus.Counter
	CellsOccupied     prometheus.Gauge
	DetaineesJailed   prometheus.Gauge
	ParoleesActive    prometheus.Gauge
	GameMinutes       prometheus.Gauge
	TickDuration      prometheus.Histogram
	WSClientsActive   prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ArrestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jail_arrests_total",
			Help: "Total arrests processed, by severity tier",
		}, []string{"tier"}),
		BookingsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jail_bookings_completed_total",
			Help: "Total booking pipelines that reached Complete",
		}),
		BookingsAborted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jail_bookings_aborted_total",
			Help: "Total booking pipelines aborted before Complete",
		}),
		ReleasesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jail_releases_total",
			Help: "Total completed releases, by path (served, bail, forced)",
		}, []string{"path"}),
		BailPaymentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jail_bail_payments_total",
			Help: "Total bail payments accepted",
		}),
		FinePaymentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jail_fine_payments_total",
			Help: "Total fine payments accepted",
		}),
		ParoleSearches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jail_parole_searches_total",
			Help: "Total parole searches, by result (clean, violation)",
		}, []string{"result"}),
		ParoleViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jail_parole_violations_total",
			Help: "Total recorded parole violations",
		}),
		CellsOccupied: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jail_cells_occupied",
			Help: "Currently occupied cells",
		}),
		DetaineesJailed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jail_detainees_jailed",
			Help: "Subjects with a live jail time record",
		}),
		ParoleesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jail_parolees_active",
			Help: "Subjects with a live parole record",
		}),
		GameMinutes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jail_game_minutes",
			Help: "Current in-game clock in minutes",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jail_tick_duration_seconds",
			Help:    "Wall time spent processing one engine tick",
			Buckets: prometheus.DefBuckets,
		}),
		WSClientsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jail_ws_clients_active",
			Help: "Active websocket clients on the UI hub",
		}),
	}
}

// Nop returns a metrics set backed by an isolated registry, for tests and
// tools that must not touch the default registerer.
func Nop() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		ArrestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jail_arrests_total", Help: "unused",
		}, []string{"tier"}),
		BookingsCompleted: factory.NewCounter(prometheus.CounterOpts{Name: "jail_bookings_completed_total", Help: "unused"}),
		BookingsAborted:   factory.NewCounter(prometheus.CounterOpts{Name: "jail_bookings_aborted_total", Help: "unused"}),
		ReleasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jail_releases_total", Help: "unused",
		}, []string{"path"}),
		BailPaymentsTotal: factory.NewCounter(prometheus.CounterOpts{Name: "jail_bail_payments_total", Help: "unused"}),
		FinePaymentsTotal: factory.NewCounter(prometheus.CounterOpts{Name: "jail_fine_payments_total", Help: "unused"}),
		ParoleSearches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jail_parole_searches_total", Help: "unused",
		}, []string{"result"}),
		ParoleViolations: factory.NewCounter(prometheus.CounterOpts{Name: "jail_parole_violations_total", Help: "unused"}),
		CellsOccupied:    factory.NewGauge(prometheus.GaugeOpts{Name: "jail_cells_occupied", Help: "unused"}),
		DetaineesJailed:  factory.NewGauge(prometheus.GaugeOpts{Name: "jail_detainees_jailed", Help: "unused"}),
		ParoleesActive:   factory.NewGauge(prometheus.GaugeOpts{Name: "jail_parolees_active", Help: "unused"}),
		GameMinutes:      factory.NewGauge(prometheus.GaugeOpts{Name: "jail_game_minutes", Help: "unused"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "jail_tick_duration_seconds", Help: "unused", Buckets: prometheus.DefBuckets,
		}),
		WSClientsActive: factory.NewGauge(prometheus.GaugeOpts{Name: "jail_ws_clients_active", Help: "unused"}),
	}
}
