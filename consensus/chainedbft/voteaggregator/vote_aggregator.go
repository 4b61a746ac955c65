// Package voteaggregator provides the asynchronous front-end of vote
// processing: votes are handed off to a worker pool for signature
// verification and accumulation, so slow crypto never blocks the event loop.
package voteaggregator

import (
	"errors"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/consensus/chainedbft/votecollector"
	"github.com/kengeo/libra/model/libra"
)

// defaultWorkers bounds the signature verification parallelism.
const defaultWorkers = 4

// VoteAggregator verifies and accumulates votes across rounds. Implements
// chainedbft.VoteAggregator.
type VoteAggregator struct {
	log        zerolog.Logger
	violations chainedbft.ViolationConsumer
	collectors *votecollector.VoteCollectors
	workers    *workerpool.WorkerPool
}

var _ chainedbft.VoteAggregator = (*VoteAggregator)(nil)

// New creates a vote aggregator on top of the given collectors map.
func New(
	log zerolog.Logger,
	violations chainedbft.ViolationConsumer,
	collectors *votecollector.VoteCollectors,
) *VoteAggregator {
	return &VoteAggregator{
		log:        log.With().Str("component", "vote_aggregator").Logger(),
		violations: violations,
		collectors: collectors,
		workers:    workerpool.New(defaultWorkers),
	}
}

// AddVote submits a vote for asynchronous processing. The call never blocks
// on verification; outcomes are reported through the violation consumer and
// the collector's certificate callback.
func (va *VoteAggregator) AddVote(vote *libra.Vote) {
	va.workers.Submit(func() {
		va.processVote(vote)
	})
}

func (va *VoteAggregator) processVote(vote *libra.Vote) {
	log := va.log.With().
		Uint64("round", vote.Round()).
		Str("block_id", vote.BlockID().String()).
		Str("author", vote.Author.String()).
		Logger()

	collector, _, err := va.collectors.GetOrCreateCollector(vote.Round())
	if err != nil {
		if model.IsStaleMessageError(err) {
			log.Debug().Msg("dropping vote for pruned round")
			return
		}
		log.Err(err).Msg("could not get collector for vote")
		return
	}

	err = collector.AddVote(vote)
	if err == nil {
		return
	}
	switch {
	case model.IsDoubleVoteError(err):
		doubleErr, _ := model.AsDoubleVoteError(err)
		log.Warn().Msg("double vote detected")
		va.violations.OnDoubleVoteDetected(doubleErr.FirstVote, doubleErr.ConflictingVote)
	case model.IsInvalidVoteError(err):
		log.Warn().Err(err).Msg("invalid vote detected")
		va.violations.OnInvalidContribution(err)
	case errors.Is(err, votecollector.VoteForIncompatibleRoundError),
		errors.Is(err, votecollector.VoteForIncompatibleEpochError):
		// cannot happen with collectors keyed by round; log and move on
		log.Err(err).Msg("vote dispatched to incompatible collector")
	default:
		log.Err(err).Msg("unexpected error processing vote")
	}
}

// PruneUpToRound discards all vote state for rounds strictly below the given
// round.
func (va *VoteAggregator) PruneUpToRound(round uint64) {
	va.collectors.PruneUpToRound(round)
}

// Stop drains the worker pool. Blocks until all submitted votes have been
// processed.
func (va *VoteAggregator) Stop() {
	va.workers.StopWait()
}
