package libra_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/utils/unittest"
)

func TestBlock_ID(t *testing.T) {
	genesis, _ := unittest.GenesisFixture(1)
	block := unittest.BlockWithParentFixture(genesis)

	// the ID covers everything except the signature
	id := block.ID()
	block.Signature = unittest.SignatureFixture()
	require.Equal(t, id, block.ID())

	block.Payload = []byte("different")
	require.NotEqual(t, id, block.ID())
}

func TestBlock_CheckWellFormed(t *testing.T) {
	genesis, _ := unittest.GenesisFixture(1)

	t.Run("valid", func(t *testing.T) {
		block := unittest.BlockWithParentFixture(genesis)
		require.NoError(t, block.CheckWellFormed())
		require.Equal(t, genesis.ID(), block.ParentID())
	})

	t.Run("round not above parent", func(t *testing.T) {
		block := unittest.BlockWithParentFixture(genesis, unittest.WithBlockRound(genesis.Round))
		require.Error(t, block.CheckWellFormed())
	})

	t.Run("epoch mismatch", func(t *testing.T) {
		block := unittest.BlockWithParentFixture(genesis)
		block.Epoch = 2
		require.Error(t, block.CheckWellFormed())
	})

	t.Run("missing author", func(t *testing.T) {
		block := unittest.BlockWithParentFixture(genesis)
		block.Author = libra.ZeroID
		require.Error(t, block.CheckWellFormed())
	})
}

func TestVote_CheckWellFormed(t *testing.T) {
	genesis, _ := unittest.GenesisFixture(1)
	block := unittest.BlockWithParentFixture(genesis)

	t.Run("valid", func(t *testing.T) {
		vote := unittest.VoteForBlock(block, unittest.IdentifierFixture())
		require.NoError(t, vote.CheckWellFormed())
	})

	t.Run("ledger info mismatch", func(t *testing.T) {
		vote := unittest.VoteForBlock(block, unittest.IdentifierFixture())
		vote.LedgerInfo.ConsensusDataHash = unittest.IdentifierFixture()
		require.Error(t, vote.CheckWellFormed())
	})

	t.Run("missing signature", func(t *testing.T) {
		vote := unittest.VoteForBlock(block, unittest.IdentifierFixture())
		vote.Signature = nil
		require.Error(t, vote.CheckWellFormed())
	})
}
