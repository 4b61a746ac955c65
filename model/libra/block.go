package libra

import (
	"fmt"
)

// Block is one element of the proposed chain. It carries the quorum
// certificate of its parent, so a well-formed block is self-contained
// evidence that its parent was certified.
type Block struct {
	Payload        []byte     `cbor:"1,keyasint"`
	Epoch          uint64     `cbor:"2,keyasint"`
	Round          uint64     `cbor:"3,keyasint"`
	TimestampUsecs uint64     `cbor:"4,keyasint"`
	QuorumCert     QuorumCert `cbor:"5,keyasint"`
	Author         Identifier `cbor:"6,keyasint"`
	Signature      []byte     `cbor:"7,keyasint"`
}

// blockFingerprint is the portion of the block covered by the block ID and
// the author's signature. The signature itself is excluded, otherwise the ID
// could not be computed before signing.
type blockFingerprint struct {
	Payload        []byte     `cbor:"1,keyasint"`
	Epoch          uint64     `cbor:"2,keyasint"`
	Round          uint64     `cbor:"3,keyasint"`
	TimestampUsecs uint64     `cbor:"4,keyasint"`
	QuorumCert     QuorumCert `cbor:"5,keyasint"`
	Author         Identifier `cbor:"6,keyasint"`
}

// ID returns the unique identifier of the block. The ID covers every field
// except the author signature.
func (b *Block) ID() Identifier {
	return MakeID(blockFingerprint{
		Payload:        b.Payload,
		Epoch:          b.Epoch,
		Round:          b.Round,
		TimestampUsecs: b.TimestampUsecs,
		QuorumCert:     b.QuorumCert,
		Author:         b.Author,
	})
}

// ParentID returns the ID of the block's parent, as certified by the
// embedded quorum certificate.
func (b *Block) ParentID() Identifier {
	return b.QuorumCert.CertifiedBlockID()
}

// BlockInfo derives the block info with the given execution outputs. The
// executed state digest and ledger version are supplied by the external
// execution collaborator.
func (b *Block) BlockInfo(executedStateID Identifier, version uint64) BlockInfo {
	return BlockInfo{
		Epoch:           b.Epoch,
		Round:           b.Round,
		ID:              b.ID(),
		ExecutedStateID: executedStateID,
		Version:         version,
		TimestampUsecs:  b.TimestampUsecs,
	}
}

// CheckWellFormed verifies the structural invariants of the block against
// its embedded parent certificate: the parent certificate must certify a
// strictly lower round within the same epoch. Authorship and signature
// validity are checked separately against the validator context.
func (b *Block) CheckWellFormed() error {
	if err := b.QuorumCert.CheckWellFormed(); err != nil {
		return fmt.Errorf("invalid embedded quorum cert: %w", err)
	}
	if b.Epoch != b.QuorumCert.Epoch() {
		return fmt.Errorf("block epoch (%d) does not match certified parent epoch (%d)", b.Epoch, b.QuorumCert.Epoch())
	}
	if b.Round <= b.QuorumCert.Round() {
		return fmt.Errorf("block round (%d) must be strictly greater than certified parent round (%d)", b.Round, b.QuorumCert.Round())
	}
	if b.Author == ZeroID {
		return fmt.Errorf("block author must not be zero")
	}
	return nil
}
