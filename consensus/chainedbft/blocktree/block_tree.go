// Package blocktree maintains the in-memory tree of pending blocks rooted
// at the last committed block and applies the 3-chain commit rule.
package blocktree

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

// vertex is one node of the tree. A vertex is certified once we hold a
// quorum certificate for it, either carried by a child block or received
// standalone (from the vote aggregator or a peer's sync summary).
type vertex struct {
	block        *libra.Block
	blockID      libra.Identifier
	children     []libra.Identifier
	certifyingQC *libra.QuorumCert
}

// BlockTree implements chainedbft.BlockTree. Mutations run under the write
// lock; ancestry and status queries may run concurrently under read locks.
type BlockTree struct {
	log zerolog.Logger

	mu       sync.RWMutex
	vertices map[libra.Identifier]*vertex
	rootID   libra.Identifier

	highestQC         *libra.QuorumCert
	highestCommitCert *libra.QuorumCert
}

var _ chainedbft.BlockTree = (*BlockTree)(nil)

// New creates a block tree anchored at the given trusted root block and the
// certificate proving it. The root is the last committed block; everything
// pending grows from it.
func New(log zerolog.Logger, root *libra.Block, rootQC *libra.QuorumCert) (*BlockTree, error) {
	rootID := root.ID()
	if rootQC.CertifiedBlockID() != rootID {
		return nil, fmt.Errorf("root certificate certifies %v, expected root %v", rootQC.CertifiedBlockID(), rootID)
	}
	t := &BlockTree{
		log:               log.With().Str("component", "block_tree").Logger(),
		vertices:          make(map[libra.Identifier]*vertex),
		rootID:            rootID,
		highestQC:         rootQC,
		highestCommitCert: rootQC,
	}
	t.vertices[rootID] = &vertex{
		block:        root,
		blockID:      rootID,
		certifyingQC: rootQC,
	}
	return t, nil
}

// Insert adds a validated block to the tree. The block's embedded quorum
// certificate must certify a block that is already present; inserting the
// block therefore also certifies its parent, which can trigger commits.
func (t *BlockTree) Insert(block *libra.Block) ([]*libra.Block, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	blockID := block.ID()
	if _, ok := t.vertices[blockID]; ok {
		// repeated delivery is expected, e.g. from sync responses
		return nil, nil
	}

	if err := block.CheckWellFormed(); err != nil {
		return nil, model.InvalidBlockError{BlockID: blockID, Round: block.Round, Err: err}
	}

	root := t.vertices[t.rootID].block
	if block.Epoch < root.Epoch {
		return nil, model.NewStaleMessageErrorf("block for epoch %d, tree anchored in epoch %d", block.Epoch, root.Epoch)
	}
	if block.Epoch > root.Epoch {
		// a future-epoch block is not stale, but this tree cannot link it
		return nil, model.InvalidBlockError{
			BlockID: blockID,
			Round:   block.Round,
			Err:     fmt.Errorf("block for future epoch %d, tree anchored in epoch %d", block.Epoch, root.Epoch),
		}
	}
	if block.Round <= root.Round {
		return nil, model.NewStaleMessageErrorf("block round %d at or below committed round %d", block.Round, root.Round)
	}

	parentID := block.ParentID()
	parent, ok := t.vertices[parentID]
	if !ok {
		return nil, model.OrphanBlockError{BlockID: blockID, ParentID: parentID}
	}
	if block.QuorumCert.Round() != parent.block.Round {
		return nil, model.InvalidBlockError{
			BlockID: blockID,
			Round:   block.Round,
			Err:     fmt.Errorf("embedded certificate is for round %d, parent has round %d", block.QuorumCert.Round(), parent.block.Round),
		}
	}

	t.vertices[blockID] = &vertex{block: block, blockID: blockID}
	parent.children = append(parent.children, blockID)

	t.log.Debug().
		Uint64("round", block.Round).
		Str("block_id", blockID.String()).
		Str("parent_id", parentID.String()).
		Msg("block inserted")

	// the new block proves its parent certified
	return t.certify(parent, &block.QuorumCert)
}

// ProcessCertificate records a standalone certification of a block already
// in the tree and applies the commit rule.
func (t *BlockTree) ProcessCertificate(qc *libra.QuorumCert) ([]*libra.Block, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	root := t.vertices[t.rootID].block
	if qc.Epoch() != root.Epoch {
		return nil, model.NewStaleMessageErrorf("certificate for epoch %d, tree anchored in epoch %d", qc.Epoch(), root.Epoch)
	}
	if qc.Round() < root.Round {
		return nil, model.NewStaleMessageErrorf("certificate round %d below committed round %d", qc.Round(), root.Round)
	}

	target, ok := t.vertices[qc.CertifiedBlockID()]
	if !ok {
		return nil, model.OrphanBlockError{BlockID: qc.CertifiedBlockID(), ParentID: qc.ParentBlockID()}
	}
	return t.certify(target, qc)
}

// certify marks the vertex as certified by the given certificate and applies
// the 3-chain commit rule with the newly certified block as chain head.
// Caller must hold the write lock.
func (t *BlockTree) certify(v *vertex, qc *libra.QuorumCert) ([]*libra.Block, error) {
	if v.certifyingQC == nil {
		v.certifyingQC = qc
	}
	if qc.Round() > t.highestQC.Round() {
		t.highestQC = qc
	}

	// b3 = newly certified block; its grandparent becomes committable
	b2, ok := t.vertices[v.block.ParentID()]
	if !ok {
		// parent already committed and pruned, nothing further to commit
		return nil, nil
	}
	committed := t.commitChain(b2.block.ParentID())
	if len(committed) > 0 {
		commitRound := qc.SignedLedgerInfo.LedgerInfo.CommitInfo.Round
		if commitRound > t.highestCommitCert.SignedLedgerInfo.LedgerInfo.CommitInfo.Round {
			t.highestCommitCert = qc
		}
	}
	return committed, nil
}

// Commit applies the 3-chain commit rule to the given block: it commits iff
// some grandchild of the block, reached through direct parent links, is
// certified. Idempotent for already committed blocks.
func (t *BlockTree) Commit(blockID libra.Identifier) ([]*libra.Block, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.vertices[blockID]
	if !ok {
		return nil, model.MissingBlockError{BlockID: blockID}
	}
	root := t.vertices[t.rootID].block
	if v.block.Round <= root.Round {
		// already committed
		return nil, nil
	}

	if !t.hasCertifiedGrandchild(v) {
		return nil, nil
	}
	return t.commitChain(blockID), nil
}

// hasCertifiedGrandchild reports whether the 3-chain rule holds for b1:
// there is a child b2 and a grandchild b3 with b3 certified. Caller must
// hold the lock.
func (t *BlockTree) hasCertifiedGrandchild(b1 *vertex) bool {
	for _, childID := range b1.children {
		b2 := t.vertices[childID]
		for _, grandchildID := range b2.children {
			if t.vertices[grandchildID].certifyingQC != nil {
				return true
			}
		}
	}
	return false
}

// commitChain commits the chain from the current root (exclusive) up to the
// given block (inclusive), prunes branches that do not descend from the new
// root and returns the committed blocks in parent-first order. A target at
// or below the root commits nothing. Caller must hold the write lock.
func (t *BlockTree) commitChain(targetID libra.Identifier) []*libra.Block {
	target, ok := t.vertices[targetID]
	if !ok {
		return nil
	}
	root := t.vertices[t.rootID].block
	if target.block.Round <= root.Round {
		return nil
	}

	// collect the path root -> target, parent-first
	var chain []*libra.Block
	for id := targetID; id != t.rootID; {
		v, ok := t.vertices[id]
		if !ok {
			// target does not descend from the root; nothing to commit
			return nil
		}
		chain = append([]*libra.Block{v.block}, chain...)
		id = v.block.ParentID()
	}

	t.rootID = targetID
	t.prune()

	for _, b := range chain {
		t.log.Info().
			Uint64("round", b.Round).
			Str("block_id", b.ID().String()).
			Msg("block committed")
	}
	return chain
}

// prune drops every vertex that does not descend from the (new) root.
// Committed ancestors are detached as well; they live on in the external
// ledger. Caller must hold the write lock.
func (t *BlockTree) prune() {
	reachable := make(map[libra.Identifier]*vertex, len(t.vertices))
	queue := []libra.Identifier{t.rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		v := t.vertices[id]
		reachable[id] = v
		queue = append(queue, v.children...)
	}
	t.vertices = reachable
}

// Ancestors returns up to n ancestors of the block, starting with the block
// itself and walking towards the root.
func (t *BlockTree) Ancestors(blockID libra.Identifier, n uint64) ([]*libra.Block, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.vertices[blockID]
	if !ok {
		return nil, model.MissingBlockError{BlockID: blockID}
	}

	ancestors := make([]*libra.Block, 0, n)
	for uint64(len(ancestors)) < n {
		ancestors = append(ancestors, v.block)
		if v.blockID == t.rootID {
			break
		}
		parent, ok := t.vertices[v.block.ParentID()]
		if !ok {
			break
		}
		v = parent
	}
	return ancestors, nil
}

// GetBlock returns the block with the given ID, if present.
func (t *BlockTree) GetBlock(blockID libra.Identifier) (*libra.Block, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.vertices[blockID]
	if !ok {
		return nil, false
	}
	return v.block, true
}

// HighestQuorumCert returns the certificate with the highest round observed.
func (t *BlockTree) HighestQuorumCert() *libra.QuorumCert {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.highestQC
}

// HighestCommitCert returns the certificate carrying the highest committed
// ledger info.
func (t *BlockTree) HighestCommitCert() *libra.QuorumCert {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.highestCommitCert
}

// CommittedRound returns the round of the last committed block.
func (t *BlockTree) CommittedRound() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vertices[t.rootID].block.Round
}
