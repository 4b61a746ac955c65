package timeoutaggregator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kengeo/libra/consensus/chainedbft/committee"
	"github.com/kengeo/libra/consensus/chainedbft/timeoutcollector"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/utils/unittest"
)

const (
	testEpoch = uint64(1)
	testRound = uint64(3)
)

type aggregatorHarness struct {
	validators libra.IdentifierList
	consumer   *unittest.CollectingConsumer
	aggregator *TimeoutAggregator

	mu  sync.Mutex
	tcs []*libra.TimeoutCertificate
}

func newHarness(t *testing.T) *aggregatorHarness {
	h := &aggregatorHarness{
		validators: unittest.IdentifierListFixture(4),
		consumer:   &unittest.CollectingConsumer{},
	}
	com, err := committee.NewStatic(h.validators[0], unittest.EqualWeights(h.validators))
	require.NoError(t, err)

	factory := func(round uint64) (*timeoutcollector.TimeoutCollector, error) {
		return timeoutcollector.NewTimeoutCollector(
			unittest.Logger(), testEpoch, round, com, unittest.PassingVerifier{}, h.onTC,
		)
	}
	collectors := timeoutcollector.NewTimeoutCollectors(unittest.Logger(), 0, factory)
	h.aggregator = New(unittest.Logger(), h.consumer, collectors)
	return h
}

func (h *aggregatorHarness) onTC(tc *libra.TimeoutCertificate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tcs = append(h.tcs, tc)
}

func (h *aggregatorHarness) builtTCs() []*libra.TimeoutCertificate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tcs
}

// TestAddTimeout_BuildsTC verifies end-to-end aggregation through the worker
// pool: three of four equal-weight timeouts produce exactly one certificate.
func TestAddTimeout_BuildsTC(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		h.aggregator.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[i]))
	}
	h.aggregator.Stop() // drains all submitted work

	tcs := h.builtTCs()
	require.Len(t, tcs, 1)
	require.Equal(t, testRound, tcs[0].Round)
	require.Equal(t, testEpoch, tcs[0].Epoch)
	require.Len(t, tcs[0].Signatures.SignerIDs, 3)
}

func TestAddTimeout_ReportsViolations(t *testing.T) {
	h := newHarness(t)

	// a repeat by the same author is a duplicate, not a violation
	h.aggregator.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[0]))
	h.aggregator.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[0]))
	// non-member
	h.aggregator.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, unittest.IdentifierFixture()))
	h.aggregator.Stop()

	require.Equal(t, 1, h.consumer.InvalidCount())
	require.Empty(t, h.builtTCs())
}

func TestAddTimeout_StaleRoundDropped(t *testing.T) {
	h := newHarness(t)

	h.aggregator.PruneUpToRound(testRound + 1)
	for i := 0; i < 3; i++ {
		h.aggregator.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[i]))
	}
	h.aggregator.Stop()

	require.Empty(t, h.builtTCs())
	require.Zero(t, h.consumer.InvalidCount())
}
