package timeoutcollector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/committee"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/utils/unittest"
)

const (
	testEpoch = uint64(1)
	testRound = uint64(7)
)

type collectorHarness struct {
	validators libra.IdentifierList
	collector  *TimeoutCollector

	mu  sync.Mutex
	tcs []*libra.TimeoutCertificate
}

func newHarness(t *testing.T, verifier chainedbft.Verifier) *collectorHarness {
	validators := unittest.IdentifierListFixture(4)
	com, err := committee.NewStatic(validators[0], unittest.EqualWeights(validators))
	require.NoError(t, err)

	h := &collectorHarness{validators: validators}
	h.collector, err = NewTimeoutCollector(
		unittest.Logger(), testEpoch, testRound, com, verifier, h.onTC,
	)
	require.NoError(t, err)
	return h
}

func (h *collectorHarness) onTC(tc *libra.TimeoutCertificate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tcs = append(h.tcs, tc)
}

func (h *collectorHarness) builtTCs() []*libra.TimeoutCertificate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tcs
}

// TestAddTimeout_QuorumReached verifies one-shot emission of the timeout
// certificate at the third of four equal-weight contributions.
func TestAddTimeout_QuorumReached(t *testing.T) {
	h := newHarness(t, unittest.PassingVerifier{})

	for i := 0; i < 2; i++ {
		timeout := unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[i])
		require.NoError(t, h.collector.AddTimeout(timeout))
		require.Empty(t, h.builtTCs())
	}

	require.NoError(t, h.collector.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[2])))
	tcs := h.builtTCs()
	require.Len(t, tcs, 1)
	tc := tcs[0]
	require.Equal(t, testEpoch, tc.Epoch)
	require.Equal(t, testRound, tc.Round)
	require.ElementsMatch(t, h.validators[:3], tc.Signatures.SignerIDs)

	// a late contribution does not re-emit
	require.NoError(t, h.collector.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[3])))
	require.Len(t, h.builtTCs(), 1)
}

func TestAddTimeout_IdenticalResubmission(t *testing.T) {
	h := newHarness(t, unittest.PassingVerifier{})
	timeout := unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[0])

	require.NoError(t, h.collector.AddTimeout(timeout))
	require.NoError(t, h.collector.AddTimeout(timeout))

	// the duplicate did not count towards the quorum
	require.NoError(t, h.collector.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[1])))
	require.Empty(t, h.builtTCs())
}

// TestAddTimeout_RepeatAuthor verifies that a second timeout by the same
// author is a duplicate even when the signature bytes differ, as happens
// when a vote-derived round signature and a dedicated timeout signature for
// the same round both arrive. It must neither error nor double-count.
func TestAddTimeout_RepeatAuthor(t *testing.T) {
	h := newHarness(t, unittest.PassingVerifier{})

	first := unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[0])
	require.NoError(t, h.collector.AddTimeout(first))

	// same author, different signature bytes
	repeat := unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[0])
	require.NotEqual(t, first.Signature, repeat.Signature)
	require.NoError(t, h.collector.AddTimeout(repeat))

	// the repeat did not count towards the quorum
	require.NoError(t, h.collector.AddTimeout(unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[1])))
	require.Empty(t, h.builtTCs())
}

func TestAddTimeout_Invalid(t *testing.T) {
	t.Run("unknown author", func(t *testing.T) {
		h := newHarness(t, unittest.PassingVerifier{})
		timeout := unittest.TimeoutObjectFixture(testEpoch, testRound, unittest.IdentifierFixture())
		err := h.collector.AddTimeout(timeout)
		require.Error(t, err)
		require.True(t, model.IsInvalidTimeoutError(err))
	})

	t.Run("bad signature", func(t *testing.T) {
		h := newHarness(t, unittest.FailingVerifier{Err: model.ErrInvalidSignature})
		timeout := unittest.TimeoutObjectFixture(testEpoch, testRound, h.validators[0])
		err := h.collector.AddTimeout(timeout)
		require.Error(t, err)
		require.True(t, model.IsInvalidTimeoutError(err))
	})

	t.Run("wrong round", func(t *testing.T) {
		h := newHarness(t, unittest.PassingVerifier{})
		timeout := unittest.TimeoutObjectFixture(testEpoch, testRound+1, h.validators[0])
		err := h.collector.AddTimeout(timeout)
		require.ErrorIs(t, err, TimeoutForIncompatibleRoundError)
	})

	t.Run("wrong epoch", func(t *testing.T) {
		h := newHarness(t, unittest.PassingVerifier{})
		timeout := unittest.TimeoutObjectFixture(testEpoch+1, testRound, h.validators[0])
		err := h.collector.AddTimeout(timeout)
		require.ErrorIs(t, err, TimeoutForIncompatibleEpochError)
	})
}

func TestTimeoutCollectors(t *testing.T) {
	validators := unittest.IdentifierListFixture(4)
	com, err := committee.NewStatic(validators[0], unittest.EqualWeights(validators))
	require.NoError(t, err)
	factory := func(round uint64) (*TimeoutCollector, error) {
		return NewTimeoutCollector(unittest.Logger(), testEpoch, round, com, unittest.PassingVerifier{}, func(*libra.TimeoutCertificate) {})
	}
	collectors := NewTimeoutCollectors(unittest.Logger(), 5, factory)

	created, isNew, err := collectors.GetOrCreateCollector(7)
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, uint64(7), created.Round())

	same, isNew, err := collectors.GetOrCreateCollector(7)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Same(t, created, same)

	_, _, err = collectors.GetOrCreateCollector(4)
	require.Error(t, err)
	require.True(t, model.IsStaleMessageError(err))

	collectors.PruneUpToRound(8)
	_, _, err = collectors.GetOrCreateCollector(7)
	require.Error(t, err)
	require.True(t, model.IsStaleMessageError(err))

	// the boundary never regresses
	collectors.PruneUpToRound(3)
	_, _, err = collectors.GetOrCreateCollector(7)
	require.Error(t, err)
	require.True(t, model.IsStaleMessageError(err))

	fresh, isNew, err := collectors.GetOrCreateCollector(8)
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, uint64(8), fresh.Round())
}
