package chainedbft

import (
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/model/messages"
)

// Communicator hands outbound messages to the external message router.
// Addressing policy (who the next leader is, which peers to broadcast to)
// belongs to the router; the engine only states intent.
type Communicator interface {
	// BroadcastProposal sends the proposal to all replicas of the epoch.
	BroadcastProposal(proposal *messages.Proposal) error

	// SendVote sends the vote to the collector of the next round.
	SendVote(vote *libra.Vote) error

	// BroadcastSyncInfo advertises the local state summary.
	BroadcastSyncInfo(syncInfo *libra.SyncInfo) error

	// SendRequestBlock asks the given peer for missing history. A zero peer
	// identifier lets the router pick any suitable peer.
	SendRequestBlock(req *messages.RequestBlock, peer libra.Identifier) error

	// SendRespondBlock answers a peer's retrieval request.
	SendRespondBlock(resp *messages.RespondBlock, peer libra.Identifier) error
}

// Metrics records the engine's observability signals. A no-op
// implementation is available for tests.
type Metrics interface {
	SetCurrentRound(round uint64)
	SetCommittedRound(round uint64)
	BlockCommitted()
	QCBuilt()
	TCBuilt()
	BlockRequested()
	SyncStalled()
}
