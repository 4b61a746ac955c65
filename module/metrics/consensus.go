// Package metrics provides the prometheus collectors of the consensus
// engine, plus a no-op implementation for tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kengeo/libra/consensus/chainedbft"
)

const (
	namespaceConsensus = "consensus"
	subsystemChained   = "chainedbft"
	subsystemSync      = "chainsync"
)

// ConsensusCollector exposes the engine's observability signals via
// prometheus. Implements chainedbft.Metrics.
type ConsensusCollector struct {
	currentRound    prometheus.Gauge
	committedRound  prometheus.Gauge
	committedBlocks prometheus.Counter
	qcBuilt         prometheus.Counter
	tcBuilt         prometheus.Counter
	blockRequests   prometheus.Counter
	syncStalls      prometheus.Counter
}

var _ chainedbft.Metrics = (*ConsensusCollector)(nil)

// NewConsensusCollector creates the collector and registers it with the
// given registerer.
func NewConsensusCollector(registerer prometheus.Registerer) *ConsensusCollector {
	cc := &ConsensusCollector{
		currentRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      "cur_round",
			Namespace: namespaceConsensus,
			Subsystem: subsystemChained,
			Help:      "the current round the replica operates in",
		}),
		committedRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      "committed_round",
			Namespace: namespaceConsensus,
			Subsystem: subsystemChained,
			Help:      "the round of the latest committed block",
		}),
		committedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "committed_blocks_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemChained,
			Help:      "the number of blocks committed since startup",
		}),
		qcBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "qc_built_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemChained,
			Help:      "the number of quorum certificates built locally",
		}),
		tcBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "tc_built_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemChained,
			Help:      "the number of timeout certificates built locally",
		}),
		blockRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "block_requests_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemSync,
			Help:      "the number of block retrieval requests sent",
		}),
		syncStalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "stalls_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemSync,
			Help:      "the number of retrievals that exhausted their retry budget",
		}),
	}
	registerer.MustRegister(
		cc.currentRound,
		cc.committedRound,
		cc.committedBlocks,
		cc.qcBuilt,
		cc.tcBuilt,
		cc.blockRequests,
		cc.syncStalls,
	)
	return cc
}

func (cc *ConsensusCollector) SetCurrentRound(round uint64) {
	cc.currentRound.Set(float64(round))
}

func (cc *ConsensusCollector) SetCommittedRound(round uint64) {
	cc.committedRound.Set(float64(round))
}

func (cc *ConsensusCollector) BlockCommitted() {
	cc.committedBlocks.Inc()
}

func (cc *ConsensusCollector) QCBuilt() {
	cc.qcBuilt.Inc()
}

func (cc *ConsensusCollector) TCBuilt() {
	cc.tcBuilt.Inc()
}

func (cc *ConsensusCollector) BlockRequested() {
	cc.blockRequests.Inc()
}

func (cc *ConsensusCollector) SyncStalled() {
	cc.syncStalls.Inc()
}
