// Package metrics registers the engine's prometheus instruments,
// grounded in prysmaticlabs-prysm/beacon-chain/cache's use of promauto
// to register a metric beside the data structure it describes rather
// than in one central file.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set is the handful of gauges/counters registered for the
// epoch-transition and slashing pipelines. The engine holds a Set but
// does not update any of its instruments; they change only when a
// caller sets them. One Set is created per Engine (via New)
// so multiple engines in the same test binary don't collide on
// prometheus's default registry.
type Set struct {
	ConsensusSetSize      prometheus.Gauge
	BelowCapacitySetSize  prometheus.Gauge
	BelowThresholdSetSize prometheus.Gauge
	JailedValidatorCount  prometheus.Gauge
	TotalConsensusStake   prometheus.Gauge
	SlashesEnqueued       prometheus.Counter
	SlashesProcessed      prometheus.Counter
}

// New registers a fresh metric Set against reg. Pass
// prometheus.NewRegistry() in tests to avoid duplicate registration
// panics across test cases.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		ConsensusSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pos_consensus_set_size",
			Help: "Number of validators in the consensus set at the current pipeline epoch.",
		}),
		BelowCapacitySetSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pos_below_capacity_set_size",
			Help: "Number of validators in the below-capacity set at the current pipeline epoch.",
		}),
		BelowThresholdSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pos_below_threshold_set_size",
			Help: "Number of validators in the below-threshold set at the current pipeline epoch.",
		}),
		JailedValidatorCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pos_jailed_validator_count",
			Help: "Number of currently jailed validators.",
		}),
		TotalConsensusStake: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pos_total_consensus_stake",
			Help: "Sum of stake across the consensus set at the current epoch.",
		}),
		SlashesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_slashes_enqueued_total",
			Help: "Count of slashes enqueued for future processing.",
		}),
		SlashesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_slashes_processed_total",
			Help: "Count of slashes whose rate has been finalized.",
		}),
	}
}

// Noop returns a Set wired to a private registry, for callers (tests,
// the demo CLI) that want the instrumentation calls to be safe no-ops
// without polluting the default registry.
func Noop() *Set {
	return New(prometheus.NewRegistry())
}
