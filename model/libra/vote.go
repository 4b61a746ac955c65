package libra

import (
	"fmt"
)

// Vote is a single validator's endorsement of a (proposed, parent) pair.
// The main signature covers the ledger info; the round signature covers only
// the round number and is reusable as timeout evidence, so a vote can count
// towards a timeout certificate without a dedicated timeout message.
type Vote struct {
	VoteData       VoteData   `cbor:"1,keyasint"`
	Author         Identifier `cbor:"2,keyasint"`
	LedgerInfo     LedgerInfo `cbor:"3,keyasint"`
	Signature      []byte     `cbor:"4,keyasint"`
	RoundSignature []byte     `cbor:"5,keyasint"`
	SyncInfo       SyncInfo   `cbor:"6,keyasint"`
}

// ID returns the unique identifier of the vote.
func (v *Vote) ID() Identifier {
	return MakeID(v)
}

// Epoch returns the epoch the vote belongs to.
func (v *Vote) Epoch() uint64 {
	return v.VoteData.Proposed.Epoch
}

// Round returns the round the vote endorses a proposal for.
func (v *Vote) Round() uint64 {
	return v.VoteData.Proposed.Round
}

// BlockID returns the ID of the endorsed block.
func (v *Vote) BlockID() Identifier {
	return v.VoteData.Proposed.ID
}

// CheckWellFormed verifies the internal consistency of the vote: the ledger
// info must commit to the carried vote data, and the proposed entry must
// extend the parent entry. Signature validity is checked separately.
func (v *Vote) CheckWellFormed() error {
	if v.Author == ZeroID {
		return fmt.Errorf("vote author must not be zero")
	}
	if len(v.Signature) == 0 {
		return fmt.Errorf("vote signature must not be empty")
	}
	proposed := v.VoteData.Proposed
	parent := v.VoteData.Parent
	if proposed.Epoch != parent.Epoch {
		return fmt.Errorf("proposed epoch (%d) does not match parent epoch (%d)", proposed.Epoch, parent.Epoch)
	}
	if proposed.Round <= parent.Round {
		return fmt.Errorf("proposed round (%d) must be strictly greater than parent round (%d)", proposed.Round, parent.Round)
	}
	if v.LedgerInfo.ConsensusDataHash != v.VoteData.ID() {
		return fmt.Errorf("ledger info consensus data hash does not match vote data")
	}
	return nil
}
