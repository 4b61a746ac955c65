package model

import (
	"github.com/kengeo/libra/model/libra"
)

// Proposal is the engine-internal form of a leader's proposal: the block
// plus the leader's state summary.
type Proposal struct {
	Block    *libra.Block
	SyncInfo *libra.SyncInfo
}

// TimeoutObject is a single validator's evidence of giving up on a round.
// On the wire it travels as the round-only signature embedded in a vote or
// inside an aggregated timeout certificate; there is no dedicated message.
type TimeoutObject struct {
	Epoch     uint64
	Round     uint64
	Author    libra.Identifier
	Signature []byte
}

// ID returns a collision-resistant identifier for the timeout object.
func (t *TimeoutObject) ID() libra.Identifier {
	return libra.MakeID(t)
}

// TimeoutFromVote derives timeout evidence from a vote's round-only
// signature, if the vote carries one. This is an opportunistic optimization:
// correctness never depends on votes doubling as timeouts.
func TimeoutFromVote(vote *libra.Vote) (*TimeoutObject, bool) {
	if len(vote.RoundSignature) == 0 {
		return nil, false
	}
	return &TimeoutObject{
		Epoch:     vote.Epoch(),
		Round:     vote.Round(),
		Author:    vote.Author,
		Signature: vote.RoundSignature,
	}, true
}
