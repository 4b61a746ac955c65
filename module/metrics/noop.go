package metrics

import (
	"github.com/kengeo/libra/consensus/chainedbft"
)

// NoopCollector discards all metrics. Used in tests.
type NoopCollector struct{}

var _ chainedbft.Metrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector { return &NoopCollector{} }

func (nc *NoopCollector) SetCurrentRound(uint64)   {}
func (nc *NoopCollector) SetCommittedRound(uint64) {}
func (nc *NoopCollector) BlockCommitted()          {}
func (nc *NoopCollector) QCBuilt()                 {}
func (nc *NoopCollector) TCBuilt()                 {}
func (nc *NoopCollector) BlockRequested()          {}
func (nc *NoopCollector) SyncStalled()             {}
