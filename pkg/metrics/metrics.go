/*
Package metrics exposes lottery activity to Prometheus.
*/
package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "neolottery"

// Rejection reasons.
const (
	ReasonEntryFeeTooLow = "entry_fee_too_low"
	ReasonNotManager     = "not_manager"
	ReasonNoPlayers      = "no_players"
	ReasonFault          = "fault"
	ReasonOther          = "other"
)

// gasFactor is the number of GAS fractions in one GAS.
var gasFactor = big.NewFloat(1_0000_0000)

// Metrics for monitoring lottery activity.
var (
	entries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of accepted lottery entries",
			Name:      "entries_total",
			Namespace: namespace,
		},
	)
	rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of rejected lottery operations",
			Name:      "rejected_total",
			Namespace: namespace,
		},
		[]string{"operation", "reason"},
	)
	settlements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of settled lottery rounds",
			Name:      "settlements_total",
			Namespace: namespace,
		},
	)
	paidOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Amount of GAS paid to winners",
			Name:      "paid_out_gas_total",
			Namespace: namespace,
		},
	)
	players = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of players in the current round",
			Name:      "players",
			Namespace: namespace,
		},
	)
)

func init() {
	prometheus.MustRegister(
		entries,
		rejected,
		settlements,
		paidOut,
		players,
	)
}

// AddEntry counts an accepted entry.
func AddEntry() {
	entries.Inc()
	players.Inc()
}

// AddRejected counts a rejected operation.
func AddRejected(operation, reason string) {
	rejected.WithLabelValues(operation, reason).Inc()
}

// AddSettlement counts a settled round with the given prize (in GAS
// fractions) and resets the number of players.
func AddSettlement(prize *big.Int) {
	settlements.Inc()
	if prize != nil {
		v, _ := new(big.Float).Quo(new(big.Float).SetInt(prize), gasFactor).Float64()
		paidOut.Add(v)
	}
	players.Set(0)
}

// SetPlayers sets the number of players in the current round.
func SetPlayers(n int) {
	players.Set(float64(n))
}
