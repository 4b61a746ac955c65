// Package votecollector accumulates votes for one round until a quorum
// certificate can be built. Contributions are tracked per author with set
// semantics, which makes duplicates and equivocation structurally
// distinguishable from legitimate progress.
package votecollector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

var (
	// VoteForIncompatibleRoundError is returned when a vote is submitted to a
	// collector of a different round.
	VoteForIncompatibleRoundError = errors.New("vote for incompatible round")
	// VoteForIncompatibleEpochError is returned when a vote is submitted to a
	// collector of a different epoch.
	VoteForIncompatibleEpochError = errors.New("vote for incompatible epoch")
)

// VoteCollector collects the votes of a single (epoch, round). Safe for
// concurrent use.
type VoteCollector struct {
	log         zerolog.Logger
	epoch       uint64
	round       uint64
	committee   chainedbft.Committee
	verifier    chainedbft.Verifier
	onQCCreated chainedbft.OnQCCreated
	threshold   uint64

	mu sync.Mutex
	// first vote seen per author, for equivocation detection across blocks
	firstVotes map[libra.Identifier]*libra.Vote
	// signature accumulators per proposed block ID
	accumulators map[libra.Identifier]*voteAccumulator
}

// NewVoteCollector creates a collector for the given epoch and round.
func NewVoteCollector(
	log zerolog.Logger,
	epoch uint64,
	round uint64,
	committee chainedbft.Committee,
	verifier chainedbft.Verifier,
	onQCCreated chainedbft.OnQCCreated,
) (*VoteCollector, error) {
	totalWeight, err := committee.TotalWeight(epoch)
	if err != nil {
		return nil, fmt.Errorf("could not get total weight for epoch %d: %w", epoch, err)
	}
	threshold, err := committee.QuorumThreshold(epoch)
	if err != nil {
		return nil, fmt.Errorf("could not get quorum threshold for epoch %d: %w", epoch, err)
	}
	if threshold > totalWeight {
		return nil, fmt.Errorf("quorum threshold (%d) above total weight (%d)", threshold, totalWeight)
	}

	return &VoteCollector{
		log: log.With().
			Str("component", "vote_collector").
			Uint64("epoch", epoch).
			Uint64("round", round).
			Logger(),
		epoch:        epoch,
		round:        round,
		committee:    committee,
		verifier:     verifier,
		onQCCreated:  onQCCreated,
		threshold:    threshold,
		firstVotes:   make(map[libra.Identifier]*libra.Vote),
		accumulators: make(map[libra.Identifier]*voteAccumulator),
	}, nil
}

// Round returns the round this collector is responsible for.
func (c *VoteCollector) Round() uint64 {
	return c.round
}

// AddVote validates and accumulates a vote. Once the accumulated voting
// power for a block reaches the quorum threshold, the certificate is built
// exactly once and handed to the OnQCCreated callback; later valid votes are
// recorded for bookkeeping but do not change the emitted certificate.
// Expected error returns during normal operations:
//   - VoteForIncompatibleRoundError / VoteForIncompatibleEpochError
//   - model.InvalidVoteError for malformed votes, unknown authors or bad signatures
//   - model.DoubleVoteError when the author already voted for a different
//     block this round; aggregation proceeds with the first-seen vote only
//
// All other errors are unexpected.
func (c *VoteCollector) AddVote(vote *libra.Vote) error {
	if vote.Round() != c.round {
		return fmt.Errorf("expecting vote for round %d, got %d: %w", c.round, vote.Round(), VoteForIncompatibleRoundError)
	}
	if vote.Epoch() != c.epoch {
		return fmt.Errorf("expecting vote for epoch %d, got %d: %w", c.epoch, vote.Epoch(), VoteForIncompatibleEpochError)
	}
	if err := vote.CheckWellFormed(); err != nil {
		return model.NewInvalidVoteErrorf(vote, "malformed vote: %w", err)
	}

	weight, err := c.committee.Weight(c.epoch, vote.Author)
	if model.IsInvalidSignerError(err) {
		return model.NewInvalidVoteErrorf(vote, "vote from non-committee member: %w", err)
	}
	if err != nil {
		return fmt.Errorf("could not get weight of author %v: %w", vote.Author, err)
	}

	// signature verification is pure and runs outside the lock
	err = c.verifier.VerifyVote(vote)
	if errors.Is(err, model.ErrInvalidSignature) || model.IsInvalidSignerError(err) {
		return model.NewInvalidVoteErrorf(vote, "invalid signature: %w", err)
	}
	if err != nil {
		return fmt.Errorf("could not verify vote signature: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if first, ok := c.firstVotes[vote.Author]; ok {
		if first.BlockID() == vote.BlockID() {
			// resubmission for the same block is a no-op, even when the
			// envelope differs (fresher sync summary, re-signed bytes)
			return nil
		}
		return model.NewDoubleVoteErrorf(first, vote,
			"author %v voted for block %v after voting for block %v in round %d",
			vote.Author, vote.BlockID(), first.BlockID(), c.round)
	}
	c.firstVotes[vote.Author] = vote

	blockID := vote.BlockID()
	acc, ok := c.accumulators[blockID]
	if !ok {
		acc = newVoteAccumulator(c.threshold)
		c.accumulators[blockID] = acc
	}

	weightSoFar := acc.add(vote, weight)
	c.log.Debug().
		Str("block_id", blockID.String()).
		Str("author", vote.Author.String()).
		Uint64("accumulated_weight", weightSoFar).
		Msg("vote added")

	if weightSoFar >= c.threshold && acc.done.CompareAndSwap(false, true) {
		qc := acc.buildQC()
		c.log.Info().
			Str("block_id", blockID.String()).
			Uint64("weight", weightSoFar).
			Msg("quorum certificate built")
		c.onQCCreated(qc)
	}
	return nil
}

// voteAccumulator gathers the signatures endorsing one block ID. Access is
// guarded by the collector's lock; `done` is atomic so the one-shot
// emission survives future refactorings towards finer-grained locking.
type voteAccumulator struct {
	threshold   uint64
	totalWeight uint64
	votes       []*libra.Vote
	done        atomic.Bool
}

func newVoteAccumulator(threshold uint64) *voteAccumulator {
	return &voteAccumulator{threshold: threshold}
}

// add records the author's contribution and returns the accumulated weight.
// The caller has already ruled out duplicate authors.
func (a *voteAccumulator) add(vote *libra.Vote, weight uint64) uint64 {
	a.votes = append(a.votes, vote)
	a.totalWeight += weight
	return a.totalWeight
}

// buildQC assembles the certificate from the contributions gathered so far.
// The signer set is the set that first reached the threshold, in arrival
// order; the certificate is immutable afterwards.
func (a *voteAccumulator) buildQC() *libra.QuorumCert {
	first := a.votes[0]
	signerIDs := make(libra.IdentifierList, 0, len(a.votes))
	signatures := make([][]byte, 0, len(a.votes))
	for _, vote := range a.votes {
		signerIDs = append(signerIDs, vote.Author)
		signatures = append(signatures, vote.Signature)
	}
	return &libra.QuorumCert{
		VoteData: first.VoteData,
		SignedLedgerInfo: libra.LedgerInfoWithSignatures{
			LedgerInfo: first.LedgerInfo,
			Signatures: libra.AggregatedSignature{
				SignerIDs:  signerIDs,
				Signatures: signatures,
			},
		},
	}
}
