package libra

import (
	"fmt"
)

// QuorumCert certifies that a supermajority of voting power endorsed the
// embedded vote data. It proves validity of the proposed block and, through
// the parent entry of the vote data, extends the certified ancestry chain.
type QuorumCert struct {
	VoteData         VoteData                 `cbor:"1,keyasint"`
	SignedLedgerInfo LedgerInfoWithSignatures `cbor:"2,keyasint"`
}

// CertifiedBlockID returns the ID of the block this certificate endorses.
func (qc *QuorumCert) CertifiedBlockID() Identifier {
	return qc.VoteData.Proposed.ID
}

// Round returns the round of the certified block.
func (qc *QuorumCert) Round() uint64 {
	return qc.VoteData.Proposed.Round
}

// Epoch returns the epoch of the certified block.
func (qc *QuorumCert) Epoch() uint64 {
	return qc.VoteData.Proposed.Epoch
}

// ParentBlockID returns the ID of the certified block's parent.
func (qc *QuorumCert) ParentBlockID() Identifier {
	return qc.VoteData.Parent.ID
}

// CheckWellFormed verifies the internal consistency requirements that hold
// for any valid quorum certificate, independent of the validator set:
// the certified round must be strictly above the parent round within the
// same epoch, and the signed ledger info must commit to the same vote data.
// Signature validity is checked separately against the validator context.
func (qc *QuorumCert) CheckWellFormed() error {
	proposed := qc.VoteData.Proposed
	parent := qc.VoteData.Parent
	if proposed.Epoch != parent.Epoch {
		return fmt.Errorf("proposed epoch (%d) does not match parent epoch (%d)", proposed.Epoch, parent.Epoch)
	}
	if proposed.Round <= parent.Round {
		return fmt.Errorf("proposed round (%d) must be strictly greater than parent round (%d)", proposed.Round, parent.Round)
	}
	if qc.SignedLedgerInfo.LedgerInfo.ConsensusDataHash != qc.VoteData.ID() {
		return fmt.Errorf("signed consensus data hash does not match vote data")
	}
	return nil
}

// TimeoutCertificate certifies that a supermajority of voting power gave up
// on the round without producing a quorum certificate.
type TimeoutCertificate struct {
	Epoch      uint64              `cbor:"1,keyasint"`
	Round      uint64              `cbor:"2,keyasint"`
	Signatures AggregatedSignature `cbor:"3,keyasint"`
}
