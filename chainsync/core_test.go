package chainsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kengeo/libra/consensus/chainedbft/blocktree"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/model/messages"
	"github.com/kengeo/libra/utils/unittest"
)

const testEpoch = uint64(1)

// newCore returns a sync core over a tree holding only the root block, plus
// a chain of blocks the tree does not know yet: the retrieval targets.
func newCore(t *testing.T, config Config) (*Core, *libra.Block, []*libra.Block) {
	genesis, rootQC := unittest.GenesisFixture(testEpoch)
	tree, err := blocktree.New(unittest.Logger(), genesis, rootQC)
	require.NoError(t, err)
	core, err := New(unittest.Logger(), config, tree)
	require.NoError(t, err)
	missing := unittest.ChainFixture(genesis, 3)
	return core, genesis, missing
}

// respond builds a retrieval response carrying the given chain head-first.
func respond(status messages.BlockRetrievalStatus, chain ...*libra.Block) *messages.RespondBlock {
	blocks := make([]libra.Block, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		blocks = append(blocks, *chain[i])
	}
	return &messages.RespondBlock{Status: status, Blocks: blocks}
}

func TestSummary(t *testing.T) {
	core, _, _ := newCore(t, DefaultConfig())

	summary := core.Summary()
	require.NotNil(t, summary.HighestQuorumCert)
	require.Nil(t, summary.HighestTimeoutCert)

	// observed timeout certificates are advertised, highest wins
	core.NoteTimeoutCert(unittest.TimeoutCertFixture(testEpoch, 5))
	core.NoteTimeoutCert(unittest.TimeoutCertFixture(testEpoch, 3))
	core.NoteTimeoutCert(nil)
	require.Equal(t, uint64(5), core.Summary().HighestTimeoutRound())
}

func TestHandleSyncInfo(t *testing.T) {
	core, _, missing := newCore(t, DefaultConfig())
	tip := missing[len(missing)-1]

	// a summary not ahead of ours triggers nothing
	require.Nil(t, core.HandleSyncInfo(core.Summary()))
	require.Nil(t, core.HandleSyncInfo(&libra.SyncInfo{}))

	// a peer certifying an unknown block ahead of us triggers retrieval of
	// the gap down to our committed round
	remote := unittest.SyncInfoFixture(unittest.CertifyingQC(tip))
	req := core.HandleSyncInfo(remote)
	require.NotNil(t, req)
	require.Equal(t, tip.ID(), req.BlockID)
	require.Equal(t, tip.Round-1, req.NumBlocks)
}

// TestHandleSyncInfo_TimeoutOnlyAhead covers a summary that wins only on its
// timeout round: the peer's certified block is already behind our commit, so
// there is nothing to retrieve.
func TestHandleSyncInfo_TimeoutOnlyAhead(t *testing.T) {
	genesis, rootQC := unittest.GenesisFixture(testEpoch)
	tree, err := blocktree.New(unittest.Logger(), genesis, rootQC)
	require.NoError(t, err)
	chain := unittest.ChainFixture(genesis, 6)
	for _, block := range chain {
		_, err := tree.Insert(block)
		require.NoError(t, err)
	}
	core, err := New(unittest.Logger(), DefaultConfig(), tree)
	require.NoError(t, err)

	behind := unittest.BlockWithParentFixture(chain[0])
	require.Less(t, behind.Round, tree.CommittedRound())
	remote := unittest.SyncInfoFixture(unittest.CertifyingQC(behind),
		unittest.WithTimeoutCert(unittest.TimeoutCertFixture(testEpoch, 100)))
	require.True(t, remote.IsNewerThan(core.Summary()))
	require.Nil(t, core.HandleSyncInfo(remote))
}

func TestRequestBlock_Clamping(t *testing.T) {
	config := DefaultConfig()
	core, _, missing := newCore(t, config)
	tip := missing[len(missing)-1]

	req := core.RequestBlock(tip.ID(), 0)
	require.Equal(t, uint64(1), req.NumBlocks)

	core2, _, missing2 := newCore(t, config)
	req = core2.RequestBlock(missing2[0].ID(), config.MaxBlocksPerRequest+100)
	require.Equal(t, config.MaxBlocksPerRequest, req.NumBlocks)
}

// TestRequestBlock_InFlight verifies that re-requesting the current target
// returns the in-flight request unchanged, while a new target supersedes it
// so that late responses for the old target fall out as stale.
func TestRequestBlock_InFlight(t *testing.T) {
	core, _, missing := newCore(t, DefaultConfig())

	first := core.RequestBlock(missing[2].ID(), 3)
	again := core.RequestBlock(missing[2].ID(), 3)
	require.Equal(t, first, again)

	superseding := core.RequestBlock(missing[1].ID(), 2)
	require.Equal(t, missing[1].ID(), superseding.BlockID)

	// a response answering the superseded request is rejected without
	// consuming a retry
	_, retry, err := core.HandleRespondBlock(respond(messages.BlockRetrievalStatusSucceeded, missing[:3]...))
	require.Error(t, err)
	require.True(t, model.IsStaleMessageError(err))
	require.Nil(t, retry)

	// the in-flight target still completes normally afterwards
	blocks, retry, err := core.HandleRespondBlock(respond(messages.BlockRetrievalStatusSucceeded, missing[:2]...))
	require.NoError(t, err)
	require.Nil(t, retry)
	require.Len(t, blocks, 2)
}

func TestHandleRespondBlock_Succeeded(t *testing.T) {
	core, _, missing := newCore(t, DefaultConfig())
	tip := missing[len(missing)-1]

	require.NotNil(t, core.RequestBlock(tip.ID(), 3))
	blocks, retry, err := core.HandleRespondBlock(respond(messages.BlockRetrievalStatusSucceeded, missing...))
	require.NoError(t, err)
	require.Nil(t, retry)
	require.Len(t, blocks, 3)
	// ordered from the requested block towards its ancestors
	require.Equal(t, tip.ID(), blocks[0].ID())
	require.Equal(t, missing[0].ID(), blocks[2].ID())

	// the completed target is not requested again
	require.Nil(t, core.RequestBlock(tip.ID(), 3))
}

func TestHandleRespondBlock_NotEnoughBlocks(t *testing.T) {
	core, _, missing := newCore(t, DefaultConfig())
	tip := missing[len(missing)-1]

	// peer only has the two newest blocks of the requested range
	require.NotNil(t, core.RequestBlock(tip.ID(), 3))
	blocks, retry, err := core.HandleRespondBlock(respond(messages.BlockRetrievalStatusNotEnoughBlocks, missing[1:]...))
	require.NoError(t, err)
	require.Nil(t, retry)
	require.Len(t, blocks, 2)
	require.Equal(t, tip.ID(), blocks[0].ID())
}

// TestHandleRespondBlock_RetryBudget walks a full retry trace: the initial
// request plus two retries, then a stall on the third failure.
func TestHandleRespondBlock_RetryBudget(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, uint(3), config.MaxAttempts)
	core, _, missing := newCore(t, config)
	tip := missing[len(missing)-1]

	req := core.RequestBlock(tip.ID(), 3)
	require.NotNil(t, req)
	notFound := &messages.RespondBlock{Status: messages.BlockRetrievalStatusIDNotFound}

	_, retry1, err := core.HandleRespondBlock(notFound)
	require.NoError(t, err)
	require.NotNil(t, retry1)
	require.Equal(t, tip.ID(), retry1.BlockID)

	_, retry2, err := core.HandleRespondBlock(notFound)
	require.NoError(t, err)
	require.NotNil(t, retry2)

	_, retry3, err := core.HandleRespondBlock(notFound)
	require.Nil(t, retry3)
	require.Error(t, err)
	require.True(t, model.IsSyncStallError(err))

	// the pending request is gone; late responses are stale, and the target
	// can be requested afresh after the next summary exchange
	_, _, err = core.HandleRespondBlock(notFound)
	require.True(t, model.IsStaleMessageError(err))
	require.NotNil(t, core.RequestBlock(tip.ID(), 3))
}

// TestHandleRespondBlock_Malformed verifies that responses claiming the
// right target but not forming a parent-linked chain consume a retry, while
// a response for a different target is dropped as stale.
func TestHandleRespondBlock_Malformed(t *testing.T) {
	t.Run("different target", func(t *testing.T) {
		core, _, missing := newCore(t, DefaultConfig())
		require.NotNil(t, core.RequestBlock(missing[2].ID(), 3))
		blocks, retry, err := core.HandleRespondBlock(respond(messages.BlockRetrievalStatusSucceeded, missing[:2]...))
		require.True(t, model.IsStaleMessageError(err))
		require.Nil(t, retry)
		require.Nil(t, blocks)
	})

	t.Run("broken link", func(t *testing.T) {
		core, genesis, missing := newCore(t, DefaultConfig())
		tip := missing[2]
		stranger := unittest.BlockWithParentFixture(genesis)
		require.NotNil(t, core.RequestBlock(tip.ID(), 3))
		blocks, retry, err := core.HandleRespondBlock(respond(messages.BlockRetrievalStatusSucceeded, stranger, tip))
		require.NoError(t, err)
		require.NotNil(t, retry)
		require.Nil(t, blocks)
	})

	t.Run("empty", func(t *testing.T) {
		core, _, missing := newCore(t, DefaultConfig())
		require.NotNil(t, core.RequestBlock(missing[2].ID(), 3))
		blocks, retry, err := core.HandleRespondBlock(respond(messages.BlockRetrievalStatusSucceeded))
		require.NoError(t, err)
		require.NotNil(t, retry)
		require.Nil(t, blocks)
	})
}
