package safetyrules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/storage"
	"github.com/kengeo/libra/utils/unittest"
)

const testEpoch = uint64(1)

// memPersister keeps safety data in memory, simulating the durable store
// without a database. Restarts are simulated by constructing a new
// SafetyRules over the same persister.
type memPersister struct {
	data *chainedbft.SafetyData
}

func (p *memPersister) GetSafetyData() (*chainedbft.SafetyData, error) {
	if p.data == nil {
		return nil, storage.ErrNotFound
	}
	copied := *p.data
	return &copied, nil
}

func (p *memPersister) PutSafetyData(data *chainedbft.SafetyData) error {
	copied := *data
	p.data = &copied
	return nil
}

func newRules(t *testing.T, persist chainedbft.Persister) *SafetyRules {
	rules, err := New(
		unittest.Logger(),
		testEpoch,
		&unittest.FakeSigner{Self: unittest.IdentifierFixture()},
		persist,
		unittest.FakeComputer{},
	)
	require.NoError(t, err)
	return rules
}

func proposalFor(block *libra.Block) *model.Proposal {
	return &model.Proposal{Block: block}
}

func TestProduceVote(t *testing.T) {
	rules := newRules(t, &memPersister{})
	genesis, _ := unittest.GenesisFixture(testEpoch)
	b2 := unittest.BlockWithParentFixture(genesis)

	vote, err := rules.ProduceVote(proposalFor(b2), b2.Round)
	require.NoError(t, err)
	require.Equal(t, b2.Round, vote.Round())
	require.Equal(t, b2.ID(), vote.BlockID())
	require.NoError(t, vote.CheckWellFormed())
}

// TestProduceVote_NoDoubleVote verifies that at most one vote is ever
// produced per round, regardless of how many proposals arrive for it.
func TestProduceVote_NoDoubleVote(t *testing.T) {
	rules := newRules(t, &memPersister{})
	genesis, _ := unittest.GenesisFixture(testEpoch)
	b2 := unittest.BlockWithParentFixture(genesis)
	b2x := unittest.BlockWithParentFixture(genesis)

	_, err := rules.ProduceVote(proposalFor(b2), b2.Round)
	require.NoError(t, err)

	// conflicting proposal for the same round
	_, err = rules.ProduceVote(proposalFor(b2x), b2x.Round)
	require.Error(t, err)
	require.True(t, model.IsStaleProposalError(err))

	// identical proposal again
	_, err = rules.ProduceVote(proposalFor(b2), b2.Round)
	require.Error(t, err)
	require.True(t, model.IsStaleProposalError(err))
}

// TestProduceVote_PreferredRound verifies the chain-safety rule: after
// voting deep into one branch, a proposal extending a less preferred branch
// is refused even if its round is fresh.
func TestProduceVote_PreferredRound(t *testing.T) {
	rules := newRules(t, &memPersister{})
	genesis, _ := unittest.GenesisFixture(testEpoch)
	chain := unittest.ChainFixture(genesis, 3) // rounds 2, 3, 4
	for _, block := range chain {
		_, err := rules.ProduceVote(proposalFor(block), block.Round)
		require.NoError(t, err)
	}
	// voting for chain[2] (parent round 3) lifted the preferred round to 3

	// a fresh-round proposal extending chain[0] (parent round 2) is unsafe
	unsafe := unittest.BlockWithParentFixture(chain[0], unittest.WithBlockRound(5))
	_, err := rules.ProduceVote(proposalFor(unsafe), unsafe.Round)
	require.Error(t, err)
	require.True(t, model.IsNoVoteError(err))

	// extending the preferred branch at the same round stays fine
	safe := unittest.BlockWithParentFixture(chain[2], unittest.WithBlockRound(5))
	_, err = rules.ProduceVote(proposalFor(safe), safe.Round)
	require.NoError(t, err)
}

func TestProduceTimeout(t *testing.T) {
	rules := newRules(t, &memPersister{})
	genesis, _ := unittest.GenesisFixture(testEpoch)
	b2 := unittest.BlockWithParentFixture(genesis)

	_, err := rules.ProduceVote(proposalFor(b2), b2.Round)
	require.NoError(t, err)

	// timing out the round we just voted in is allowed
	timeout, err := rules.ProduceTimeout(b2.Round)
	require.NoError(t, err)
	require.Equal(t, b2.Round, timeout.Round)
	require.Equal(t, testEpoch, timeout.Epoch)
	require.NotEmpty(t, timeout.Signature)

	// timing out a later round forecloses voting in it
	_, err = rules.ProduceTimeout(b2.Round + 2)
	require.NoError(t, err)
	late := unittest.BlockWithParentFixture(b2, unittest.WithBlockRound(b2.Round+2))
	_, err = rules.ProduceVote(proposalFor(late), late.Round)
	require.Error(t, err)
	require.True(t, model.IsStaleProposalError(err))

	// timing out an earlier round is refused
	_, err = rules.ProduceTimeout(b2.Round)
	require.Error(t, err)
	require.True(t, model.IsStaleProposalError(err))
}

// TestRestart_StateSurvives verifies that a replica restarting with the
// persisted safety state cannot be tricked into re-voting rounds it already
// signed for.
func TestRestart_StateSurvives(t *testing.T) {
	persist := &memPersister{}
	rules := newRules(t, persist)
	genesis, _ := unittest.GenesisFixture(testEpoch)
	chain := unittest.ChainFixture(genesis, 3)
	for _, block := range chain {
		_, err := rules.ProduceVote(proposalFor(block), block.Round)
		require.NoError(t, err)
	}

	restarted := newRules(t, persist)

	// an already voted round stays refused after the restart
	_, err := restarted.ProduceVote(proposalFor(chain[2]), chain[2].Round)
	require.Error(t, err)
	require.True(t, model.IsStaleProposalError(err))

	// the preferred-round rule also survives
	unsafe := unittest.BlockWithParentFixture(chain[0], unittest.WithBlockRound(6))
	_, err = restarted.ProduceVote(proposalFor(unsafe), unsafe.Round)
	require.Error(t, err)
	require.True(t, model.IsNoVoteError(err))
}

// TestNewEpoch_ResetsState verifies that state from an older epoch confers
// no voting history in a new one.
func TestNewEpoch_ResetsState(t *testing.T) {
	persist := &memPersister{}
	rules := newRules(t, persist)
	genesis, _ := unittest.GenesisFixture(testEpoch)
	b2 := unittest.BlockWithParentFixture(genesis)
	_, err := rules.ProduceVote(proposalFor(b2), b2.Round)
	require.NoError(t, err)

	nextEpoch := testEpoch + 1
	rulesNext, err := New(
		unittest.Logger(),
		nextEpoch,
		&unittest.FakeSigner{Self: unittest.IdentifierFixture()},
		persist,
		unittest.FakeComputer{},
	)
	require.NoError(t, err)

	genesisNext, _ := unittest.GenesisFixture(nextEpoch)
	proposal := unittest.BlockWithParentFixture(genesisNext)
	vote, err := rulesNext.ProduceVote(proposalFor(proposal), proposal.Round)
	require.NoError(t, err)
	require.Equal(t, nextEpoch, vote.Epoch())
}

func TestProduceVote_RoundMismatch(t *testing.T) {
	rules := newRules(t, &memPersister{})
	genesis, _ := unittest.GenesisFixture(testEpoch)
	b2 := unittest.BlockWithParentFixture(genesis)

	_, err := rules.ProduceVote(proposalFor(b2), b2.Round+1)
	require.Error(t, err)
	require.False(t, model.IsStaleProposalError(err))
	require.False(t, model.IsNoVoteError(err))
}
