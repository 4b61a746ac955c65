// Package chainedbft holds the interfaces and shared definitions of the
// chained-BFT consensus engine. Implementations live in the subpackages;
// this package is the seam between them.
package chainedbft

import (
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

// SafetyData is the durable state of SafetyRules. It must survive restarts:
// resuming with an uncertain highest vote round risks equivocation.
type SafetyData struct {
	Epoch uint64 `cbor:"1,keyasint"`
	// HighestVoteRound is the highest round this replica has signed a vote
	// or timeout for.
	HighestVoteRound uint64 `cbor:"2,keyasint"`
	// PreferredRound is the round of the parent of the highest 2-chain head
	// this replica has voted to extend. The replica never votes for a block
	// whose parent round is below it.
	PreferredRound uint64 `cbor:"3,keyasint"`
}

// SafetyRules is the stateful guard deciding whether the local replica may
// sign a vote or timeout. It owns the only durable mutable state of the
// engine and enforces the monotonic-round and chain-safety invariants.
type SafetyRules interface {
	// ProduceVote decides whether to vote for the given proposal at the
	// current round and, if so, returns the signed vote.
	// Expected error returns during normal operations:
	//   - model.StaleProposalError if the proposal round is not above the highest voted round
	//   - model.NoVoteError if voting would break chain safety
	// All other errors are unexpected and potential symptoms of corrupted
	// durable state (fatal).
	ProduceVote(proposal *model.Proposal, curRound uint64) (*libra.Vote, error)

	// ProduceTimeout signs timeout evidence for the current round. A replica
	// may time out a round it has already voted in.
	// Expected error returns during normal operations:
	//   - model.StaleProposalError if the round is below the highest voted round
	// All other errors are unexpected and potential symptoms of corrupted
	// durable state (fatal).
	ProduceTimeout(curRound uint64) (*model.TimeoutObject, error)
}

// Persister loads and stores the durable safety state at process
// boundaries. Implementations must make PutSafetyData durable before
// returning: a vote is only released after its safety data is persisted.
type Persister interface {
	// GetSafetyData retrieves the last persisted safety data.
	// Returns storage.ErrNotFound if no safety data was persisted yet.
	GetSafetyData() (*SafetyData, error)

	// PutSafetyData persists the safety data.
	PutSafetyData(data *SafetyData) error
}
