package libra

// BlockInfo identifies a point in the replicated log. It is immutable once
// formed and is the payload that voters certify: a quorum certificate for a
// block is, at its core, an aggregated signature over the block's BlockInfo.
//
// Field keys are stable integers; a removed field leaves its key permanently
// reserved.
type BlockInfo struct {
	Epoch           uint64     `cbor:"1,keyasint"`
	Round           uint64     `cbor:"2,keyasint"`
	ID              Identifier `cbor:"3,keyasint"`
	ExecutedStateID Identifier `cbor:"4,keyasint"`
	Version         uint64     `cbor:"5,keyasint"`
	TimestampUsecs  uint64     `cbor:"6,keyasint"`
}

// VoteData links a round's proposal to its certified predecessor. A vote is
// always a statement about a (proposed, parent) pair, never about a block in
// isolation, which lets the certificate chain double as the ancestry proof.
type VoteData struct {
	Proposed BlockInfo `cbor:"1,keyasint"`
	Parent   BlockInfo `cbor:"2,keyasint"`
}

// ID returns a collision-resistant identifier for the vote data.
func (v VoteData) ID() Identifier {
	return MakeID(v)
}
