// Package metrics — счётчики Prometheus для спинов и генератора.
// Init регистрирует их в реестре по умолчанию; /metrics отдаёт promhttp.Handler.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"serotonyl.ru/slot-engine/internal/engine"
)

var (
	SpinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_spins_total",
			Help: "Total settled spins by scenario category",
		},
		[]string{"category"},
	)

	ScenarioDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slot_scenario_degraded_total",
			Help: "Scenarios resolved with the best approximation instead of an exact grid",
		},
	)

	PayoutMultiplier = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slot_payout_multiplier",
			Help:    "Authorized payout multiplier per spin",
			Buckets: []float64{0, 0.3, 0.5, 1, 1.6, 2.5, 4, 6, 10, 20, 40},
		},
	)

	EngineRTP = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slot_engine_rtp",
			Help: "Running return-to-player of the weighted symbol engine",
		},
	)

	SpinRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_spin_rejected_total",
			Help: "Spins rejected before settlement",
		},
		[]string{"reason"},
	)
)

// Причины отказа в спине
const (
	ReasonInProgress   = "in_progress"
	ReasonInsufficient = "insufficient_balance"
	ReasonDisabled     = "disabled"
	ReasonCanceled     = "canceled"
	ReasonError        = "error"
)

var registerOnce sync.Once

// Init регистрирует метрики. Повторный вызов ничего не делает.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SpinsTotal)
		prometheus.MustRegister(ScenarioDegraded)
		prometheus.MustRegister(PayoutMultiplier)
		prometheus.MustRegister(EngineRTP)
		prometheus.MustRegister(SpinRejected)
	})
}

// ObserveSpin учитывает завершённый спин.
func ObserveSpin(category engine.Category, multiplier float64, degraded bool, rtp float64) {
	SpinsTotal.WithLabelValues(string(category)).Inc()
	PayoutMultiplier.Observe(multiplier)
	if degraded {
		ScenarioDegraded.Inc()
	}
	EngineRTP.Set(rtp)
}

// ObserveRejected учитывает спин, отклонённый до расчёта.
func ObserveRejected(reason string) {
	SpinRejected.WithLabelValues(reason).Inc()
}
