// Package safetyrules implements the voting rules guaranteeing that a
// correct replica never signs conflicting commitments for the same round.
// It owns the engine's only durable mutable state.
package safetyrules

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/storage"
)

// SafetyRules produces votes and timeouts for the local replica. All rule
// state is monotone: no operation ever decreases the highest vote round or
// the preferred round, which rules out equivocation even across restarts,
// provided the persisted state survives the restart.
//
// SafetyRules is NOT safe for concurrent use; calls must be serialized by
// the event loop.
type SafetyRules struct {
	log      zerolog.Logger
	signer   chainedbft.Signer
	persist  chainedbft.Persister
	computer chainedbft.StateComputer

	safetyData *chainedbft.SafetyData
}

var _ chainedbft.SafetyRules = (*SafetyRules)(nil)

// New creates a SafetyRules instance, recovering the durable safety state
// for the given epoch. A fresh epoch starts with zeroed rounds; persisted
// state from the same epoch is resumed. A persister failure other than
// storage.ErrNotFound is fatal: voting with uncertain state risks
// equivocation.
func New(
	log zerolog.Logger,
	epoch uint64,
	signer chainedbft.Signer,
	persist chainedbft.Persister,
	computer chainedbft.StateComputer,
) (*SafetyRules, error) {
	safetyData, err := persist.GetSafetyData()
	if errors.Is(err, storage.ErrNotFound) {
		safetyData = &chainedbft.SafetyData{Epoch: epoch}
		err = persist.PutSafetyData(safetyData)
	}
	if err != nil {
		return nil, fmt.Errorf("could not recover safety data: %w", err)
	}
	if safetyData.Epoch != epoch {
		// state from an older epoch confers no voting history for this one
		safetyData = &chainedbft.SafetyData{Epoch: epoch}
		if err := persist.PutSafetyData(safetyData); err != nil {
			return nil, fmt.Errorf("could not reset safety data for epoch %d: %w", epoch, err)
		}
	}

	return &SafetyRules{
		log:        log.With().Str("component", "safety_rules").Logger(),
		signer:     signer,
		persist:    persist,
		computer:   computer,
		safetyData: safetyData,
	}, nil
}

// ProduceVote decides whether to vote for the given proposal.
// Returns:
//   - (vote, nil): on the first safe proposal for a round above the highest
//     voted round. Subsequent proposals for the same or lower rounds are
//     refused, so no two votes for conflicting blocks at the same round can
//     ever be produced.
//   - (nil, model.StaleProposalError): round already voted or timed out.
//   - (nil, model.NoVoteError): voting would abandon a preferred branch.
//
// All other errors are unexpected and potential symptoms of corrupted
// durable state (fatal).
func (r *SafetyRules) ProduceVote(proposal *model.Proposal, curRound uint64) (*libra.Vote, error) {
	block := proposal.Block
	if curRound != block.Round {
		return nil, fmt.Errorf("expecting block for current round %d, but block's round is %d", curRound, block.Round)
	}
	if block.Round <= r.safetyData.HighestVoteRound {
		return nil, model.StaleProposalError{Round: block.Round, HighestVoteRound: r.safetyData.HighestVoteRound}
	}

	parent := block.QuorumCert.VoteData.Proposed
	if parent.Round < r.safetyData.PreferredRound {
		return nil, model.NoVoteError{
			Msg: fmt.Sprintf("parent round %d below preferred round %d", parent.Round, r.safetyData.PreferredRound),
		}
	}

	executedStateID, version, err := r.computer.Compute(block)
	if err != nil {
		return nil, fmt.Errorf("could not compute execution state for block: %w", err)
	}
	voteData := libra.VoteData{
		Proposed: block.BlockInfo(executedStateID, version),
		Parent:   parent,
	}

	// the vote's ledger info carries the block that commits if this vote's
	// certificate completes a 3-chain: the grandparent reached through the
	// embedded certificate
	commitCandidate := block.QuorumCert.VoteData.Parent
	ledgerInfo := libra.LedgerInfo{
		ConsensusDataHash: voteData.ID(),
	}
	if commitCandidate.ID != libra.ZeroID {
		ledgerInfo.CommitInfo = commitCandidate
	}

	vote, err := r.signer.SignVote(voteData, ledgerInfo)
	if err != nil {
		return nil, fmt.Errorf("could not sign vote for block: %w", err)
	}

	// update and persist the safety state before releasing the vote
	r.safetyData.HighestVoteRound = block.Round
	if parent.Round > r.safetyData.PreferredRound {
		r.safetyData.PreferredRound = parent.Round
	}
	err = r.persist.PutSafetyData(r.safetyData)
	if err != nil {
		return nil, fmt.Errorf("could not persist safety data: %w", err)
	}

	r.log.Debug().
		Uint64("round", block.Round).
		Uint64("preferred_round", r.safetyData.PreferredRound).
		Str("block_id", voteData.Proposed.ID.String()).
		Msg("vote produced")

	return vote, nil
}

// ProduceTimeout signs timeout evidence for the current round. A replica may
// time out the round it has already voted in, but never an earlier one.
// Returns:
//   - (timeout, nil) on success
//   - (nil, model.StaleProposalError) if the round is below the highest
//     voted round
//
// All other errors are unexpected and potential symptoms of corrupted
// durable state (fatal).
func (r *SafetyRules) ProduceTimeout(curRound uint64) (*model.TimeoutObject, error) {
	if curRound < r.safetyData.HighestVoteRound {
		return nil, model.StaleProposalError{Round: curRound, HighestVoteRound: r.safetyData.HighestVoteRound}
	}

	timeout, err := r.signer.SignTimeout(r.safetyData.Epoch, curRound)
	if err != nil {
		return nil, fmt.Errorf("could not sign timeout for round %d: %w", curRound, err)
	}

	// timing out a round forecloses voting in it; the preferred round is
	// untouched
	if curRound > r.safetyData.HighestVoteRound {
		r.safetyData.HighestVoteRound = curRound
		err = r.persist.PutSafetyData(r.safetyData)
		if err != nil {
			return nil, fmt.Errorf("could not persist safety data: %w", err)
		}
	}

	r.log.Debug().Uint64("round", curRound).Msg("timeout produced")
	return timeout, nil
}
