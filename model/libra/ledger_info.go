package libra

// LedgerInfo is the ledger-level statement a voter signs: which block info
// the vote commits to and a digest of the consensus data (the vote data)
// the signature covers.
type LedgerInfo struct {
	CommitInfo        BlockInfo  `cbor:"1,keyasint"`
	ConsensusDataHash Identifier `cbor:"2,keyasint"`
}

// AggregatedSignature is the multi-signer evidence carried by certificates.
// Signer IDs and signatures are parallel, ordered slices; the internal
// structure of each signature is defined by the external cryptography
// collaborator and treated as opaque here.
type AggregatedSignature struct {
	SignerIDs  IdentifierList `cbor:"1,keyasint"`
	Signatures [][]byte       `cbor:"2,keyasint"`
}

// CardinalitySignerSet returns the number of _distinct_ signer IDs in the
// aggregated signature. We explicitly de-duplicate here to prevent
// repetition attacks.
func (a *AggregatedSignature) CardinalitySignerSet() int {
	return len(a.SignerIDs.Lookup())
}

// HasSigner returns true if and only if the signer contributed to this
// aggregated signature.
func (a *AggregatedSignature) HasSigner(signerID Identifier) bool {
	return a.SignerIDs.Contains(signerID)
}

// LedgerInfoWithSignatures is a ledger info endorsed by an aggregated
// signature from a quorum of validators.
type LedgerInfoWithSignatures struct {
	LedgerInfo LedgerInfo          `cbor:"1,keyasint"`
	Signatures AggregatedSignature `cbor:"2,keyasint"`
}
