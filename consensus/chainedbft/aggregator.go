package chainedbft

import (
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

// OnQCCreated is invoked exactly once per (epoch, round, block) key when the
// accumulated voting power reaches the quorum threshold.
type OnQCCreated func(qc *libra.QuorumCert)

// OnTCCreated is invoked exactly once per (epoch, round) key when the
// accumulated timeout weight reaches the quorum threshold.
type OnTCCreated func(tc *libra.TimeoutCertificate)

// VoteAggregator verifies and accumulates votes until a quorum certificate
// can be emitted. Safe for concurrent use; signature verification runs on a
// worker pool while accumulator state is guarded internally.
type VoteAggregator interface {
	// AddVote submits a vote for asynchronous processing. Invalid votes are
	// dropped, duplicates are no-ops, equivocating votes are reported to the
	// violation consumer; none of these stall the aggregator.
	AddVote(vote *libra.Vote)

	// PruneUpToRound discards all state for rounds strictly below the given
	// round. Votes for pruned rounds are subsequently ignored as stale.
	PruneUpToRound(round uint64)
}

// TimeoutAggregator accumulates timeout evidence until a timeout
// certificate can be emitted. Concurrency contract matches VoteAggregator.
type TimeoutAggregator interface {
	// AddTimeout submits timeout evidence for asynchronous processing.
	AddTimeout(timeout *model.TimeoutObject)

	// PruneUpToRound discards all state for rounds strictly below the given
	// round.
	PruneUpToRound(round uint64)
}

// ViolationConsumer receives reports of protocol violations detected in
// peer contributions. Accountability action is external; the engine keeps
// operating after reporting.
type ViolationConsumer interface {
	// OnDoubleVoteDetected reports an author who voted for two different
	// blocks in the same round.
	OnDoubleVoteDetected(first *libra.Vote, conflicting *libra.Vote)

	// OnInvalidContribution reports a contribution that failed validation.
	OnInvalidContribution(err error)
}
