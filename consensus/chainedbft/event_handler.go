package chainedbft

import (
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/model/messages"
)

// EventHandler runs the protocol state machine. Implementations are NOT
// concurrency safe; the event loop owns the single goroutine that calls
// these methods. Returned errors are fatal: every benign failure mode is
// absorbed inside the handler.
type EventHandler interface {
	// Start enters the current round.
	Start() error

	// OnReceiveProposal processes a leader's proposal.
	OnReceiveProposal(proposal *model.Proposal) error

	// OnReceiveVote processes a peer's vote.
	OnReceiveVote(vote *libra.Vote) error

	// OnReceiveSyncInfo processes a peer's state summary.
	OnReceiveSyncInfo(syncInfo *libra.SyncInfo, origin libra.Identifier) error

	// OnReceiveRequestBlock serves a peer's block retrieval request.
	OnReceiveRequestBlock(req *messages.RequestBlock, origin libra.Identifier) error

	// OnReceiveRespondBlock processes a block retrieval response.
	OnReceiveRespondBlock(resp *messages.RespondBlock, origin libra.Identifier) error

	// OnLocalTimeout gives up on the current round.
	OnLocalTimeout() error

	// OnQCCreated processes a quorum certificate built by the vote
	// aggregator.
	OnQCCreated(qc *libra.QuorumCert) error

	// OnTCCreated processes a timeout certificate built by the timeout
	// aggregator.
	OnTCCreated(tc *libra.TimeoutCertificate) error

	// CurrentRound returns the round the replica currently operates in.
	CurrentRound() uint64
}
