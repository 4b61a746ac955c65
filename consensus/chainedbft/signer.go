package chainedbft

import (
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

// Signer signs consensus entities with the local replica's key material.
// The signature scheme is an external black box; the engine never inspects
// signature bytes.
type Signer interface {
	// SignVote assembles and signs a vote over the given vote data and
	// ledger info. The returned vote carries the main signature over the
	// ledger info and the round-only signature, so it can double as timeout
	// evidence.
	SignVote(voteData libra.VoteData, ledgerInfo libra.LedgerInfo) (*libra.Vote, error)

	// SignTimeout signs timeout evidence for the given round.
	SignTimeout(epoch uint64, round uint64) (*model.TimeoutObject, error)

	// SignBlock signs a block proposal in place, setting its author and
	// signature fields.
	SignBlock(block *libra.Block) error
}

// StateComputer exposes the outcome of speculative block execution: the
// executed-state digest and ledger version a vote must commit to.
// Transaction execution itself is external.
type StateComputer interface {
	// Compute returns the executed-state digest and the resulting ledger
	// version for the given block.
	Compute(block *libra.Block) (libra.Identifier, uint64, error)
}

// Verifier checks signatures on consensus entities against the epoch's
// validator set. Signature cryptography is delegated to the external
// collaborator; the engine only interprets the verdicts.
type Verifier interface {
	// VerifyVote checks the main and round signatures of a vote.
	// Expected error returns during normal operations:
	//   - model.InvalidSignerError if the author is not a member of the epoch
	//   - model.ErrInvalidSignature if a signature does not check out
	VerifyVote(vote *libra.Vote) error

	// VerifyTimeout checks the round signature of timeout evidence.
	// Expected error returns during normal operations:
	//   - model.InvalidSignerError if the author is not a member of the epoch
	//   - model.ErrInvalidSignature if the signature does not check out
	VerifyTimeout(timeout *model.TimeoutObject) error

	// VerifyBlock checks the author signature of a proposed block.
	// Expected error returns during normal operations:
	//   - model.InvalidSignerError if the author is not a member of the epoch
	//   - model.ErrInvalidSignature if the signature does not check out
	VerifyBlock(block *libra.Block) error

	// VerifyQC checks that the aggregated signature of a quorum certificate
	// is valid and covers sufficient voting power.
	// Expected error returns during normal operations:
	//   - model.InvalidSignerError if a contributor is not a member of the epoch
	//   - model.ErrInvalidSignature if the aggregated signature does not check out
	//   - model.InsufficientSignaturesError if the certificate is below quorum
	VerifyQC(qc *libra.QuorumCert) error

	// VerifyTC checks that the aggregated signature of a timeout certificate
	// is valid and covers sufficient voting power.
	// Expected error returns during normal operations: same as VerifyQC.
	VerifyTC(tc *libra.TimeoutCertificate) error
}
