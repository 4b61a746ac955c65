package chainedbft

import (
	"github.com/kengeo/libra/model/libra"
)

// BlockTree maintains the pending blocks rooted at the last committed block.
// By construction the structure is a tree: insertion requires the parent to
// already be present, so no cycles and no multiple paths can form.
type BlockTree interface {
	// Insert adds a validated block whose parent is already in the tree.
	// Inserting a block certifies its parent, since the block carries the
	// parent's quorum certificate. Duplicate inserts are no-ops.
	// Expected error returns during normal operations:
	//   - model.OrphanBlockError if the parent is missing; the caller should
	//     trigger retrieval and retry once the parent arrives
	//   - model.StaleMessageError if the block is at or below the committed root
	//   - model.InvalidBlockError if the block is malformed
	// The returned blocks were newly committed by the insertion (through the
	// 3-chain rule), ordered parent-first.
	Insert(block *libra.Block) ([]*libra.Block, error)

	// ProcessCertificate records a standalone certification of a block
	// already in the tree and applies the commit rule. Certificates for
	// unknown blocks return model.OrphanBlockError so the caller can sync.
	// The returned blocks are newly committed, ordered parent-first.
	ProcessCertificate(qc *libra.QuorumCert) ([]*libra.Block, error)

	// Commit applies the 3-chain commit rule to the given block. It returns
	// the newly committed blocks in parent-first order; an empty result
	// means the rule is not (or no longer) satisfied for this block.
	// Repeated calls for an already committed block are idempotent no-ops.
	// Expected error returns during normal operations:
	//   - model.MissingBlockError if the block is not in the tree
	Commit(blockID libra.Identifier) ([]*libra.Block, error)

	// Ancestors returns up to n ancestors of the given block, ordered from
	// the block itself towards the root, or fewer if the root is reached
	// first. The block itself is the first element.
	// Expected error returns during normal operations:
	//   - model.MissingBlockError if the block is not in the tree
	Ancestors(blockID libra.Identifier, n uint64) ([]*libra.Block, error)

	// GetBlock returns the block with the given ID, if present.
	GetBlock(blockID libra.Identifier) (*libra.Block, bool)

	// HighestQuorumCert returns the quorum certificate with the highest round
	// observed so far.
	HighestQuorumCert() *libra.QuorumCert

	// HighestCommitCert returns the certificate carrying the highest
	// committed ledger info.
	HighestCommitCert() *libra.QuorumCert

	// CommittedRound returns the round of the last committed block (the root).
	CommittedRound() uint64
}
