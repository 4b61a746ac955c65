// Package chainsync repairs gaps in the local block tree. The Core tracks
// which peer state summaries are ahead of ours and turns them into block
// retrieval intents; the Provider answers retrieval requests from peers.
// Both are passive state machines: all network sends and tree mutations
// happen in the calling engine.
package chainsync

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/model/messages"
)

// Config tunes the retrieval state machine.
type Config struct {
	// MaxAttempts is the retry budget per retrieval target before the sync
	// is declared stalled.
	MaxAttempts uint
	// MaxBlocksPerRequest caps how many blocks one request may ask for.
	MaxBlocksPerRequest uint64
	// DedupCacheSize bounds the cache of recently completed targets.
	DedupCacheSize int
}

// DefaultConfig returns the config used in production.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		MaxBlocksPerRequest: 64,
		DedupCacheSize:      512,
	}
}

// pendingRequest is the single in-flight retrieval. A new target supersedes
// the old one; responses are correlated with the request by the target
// block ID, so replies to superseded requests fall out as stale.
type pendingRequest struct {
	blockID   libra.Identifier
	numBlocks uint64
	attempts  uint
}

// Core decides when the local replica is behind and what to request. Safe
// for concurrent use.
type Core struct {
	log    zerolog.Logger
	config Config
	tree   chainedbft.BlockTree

	mu        sync.Mutex
	highestTC *libra.TimeoutCertificate
	pending   *pendingRequest
	// targets that recently completed, to suppress duplicate summary floods
	completed *lru.Cache
}

// New creates a sync core over the given block tree.
func New(log zerolog.Logger, config Config, tree chainedbft.BlockTree) (*Core, error) {
	completed, err := lru.New(config.DedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create dedup cache: %w", err)
	}
	return &Core{
		log:       log.With().Str("component", "sync_core").Logger(),
		config:    config,
		tree:      tree,
		completed: completed,
	}, nil
}

// Summary returns the local state summary: the highest quorum certificate,
// the certificate of the highest commit, and the highest timeout certificate
// if one was observed.
func (c *Core) Summary() *libra.SyncInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &libra.SyncInfo{
		HighestQuorumCert:  c.tree.HighestQuorumCert(),
		HighestCommitCert:  c.tree.HighestCommitCert(),
		HighestTimeoutCert: c.highestTC,
	}
}

// NoteTimeoutCert records an observed timeout certificate if it is higher
// than any seen before, so later summaries advertise it.
func (c *Core) NoteTimeoutCert(tc *libra.TimeoutCertificate) {
	if tc == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.highestTC == nil || tc.Round > c.highestTC.Round {
		c.highestTC = tc
	}
}

// HandleSyncInfo compares a peer's summary against the local state and
// returns a retrieval request if the peer is ahead and the certified block is
// missing locally. A nil request means no retrieval is needed.
func (c *Core) HandleSyncInfo(remote *libra.SyncInfo) *messages.RequestBlock {
	if remote.HighestQuorumCert == nil {
		return nil
	}
	local := c.Summary()
	if !remote.IsNewerThan(local) {
		return nil
	}
	target := remote.HighestQuorumCert.CertifiedBlockID()
	if _, ok := c.tree.GetBlock(target); ok {
		return nil
	}

	// the peer's summary can be newer on its timeout round alone while its
	// certified block is already behind our commit; nothing to fetch then
	certifiedRound := remote.HighestQuorumCert.Round()
	committedRound := c.tree.CommittedRound()
	if certifiedRound <= committedRound {
		return nil
	}
	return c.RequestBlock(target, certifiedRound-committedRound)
}

// RequestBlock registers a retrieval intent for the given block and up to
// numBlocks-1 of its ancestors, and returns the request to send. A request
// for a new target supersedes any in-flight one; re-requesting the current
// target returns the in-flight request without consuming a retry. Recently
// completed targets yield nil.
func (c *Core) RequestBlock(blockID libra.Identifier, numBlocks uint64) *messages.RequestBlock {
	if numBlocks == 0 {
		numBlocks = 1
	}
	if numBlocks > c.config.MaxBlocksPerRequest {
		numBlocks = c.config.MaxBlocksPerRequest
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed.Contains(blockID) {
		return nil
	}
	if c.pending != nil && c.pending.blockID == blockID {
		return &messages.RequestBlock{
			BlockID:   c.pending.blockID,
			NumBlocks: c.pending.numBlocks,
		}
	}

	if c.pending != nil {
		c.log.Debug().
			Str("prior_target", c.pending.blockID.String()).
			Str("target", blockID.String()).
			Msg("superseding in-flight block request")
	}
	c.pending = &pendingRequest{
		blockID:   blockID,
		numBlocks: numBlocks,
		attempts:  1,
	}
	return &messages.RequestBlock{
		BlockID:   c.pending.blockID,
		NumBlocks: c.pending.numBlocks,
	}
}

// HandleRespondBlock processes a peer's retrieval response. It returns the
// retrieved blocks ordered from the requested block towards its ancestors,
// and possibly a retry request to send to another peer.
// Expected error returns during normal operations:
//   - model.StaleMessageError for unsolicited or superseded responses
//   - model.SyncStallError when the retry budget is exhausted; the pending
//     request is dropped and a later summary exchange starts over
func (c *Core) HandleRespondBlock(resp *messages.RespondBlock) ([]*libra.Block, *messages.RequestBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil, nil, model.NewStaleMessageErrorf("no in-flight block request")
	}
	target := c.pending.blockID

	switch resp.Status {
	case messages.BlockRetrievalStatusSucceeded, messages.BlockRetrievalStatusNotEnoughBlocks:
		// a reply whose leading block is not the pending target answers a
		// request this core already superseded
		if len(resp.Blocks) > 0 && resp.Blocks[0].ID() != target {
			return nil, nil, model.NewStaleMessageErrorf(
				"response for block %v does not match in-flight request for %v", resp.Blocks[0].ID(), target)
		}
		blocks, err := c.checkResponseBlocks(resp)
		if err != nil {
			c.log.Warn().Err(err).Msg("malformed retrieval response")
			retry, stallErr := c.retryLocked()
			return nil, retry, stallErr
		}
		if resp.Status == messages.BlockRetrievalStatusNotEnoughBlocks && uint64(len(blocks)) >= c.pending.numBlocks {
			c.log.Warn().Msg("peer claims truncation but sent full range")
		}
		c.pending = nil
		c.completed.Add(target, struct{}{})
		return blocks, nil, nil

	case messages.BlockRetrievalStatusIDNotFound:
		retry, stallErr := c.retryLocked()
		return nil, retry, stallErr

	default:
		c.log.Warn().Uint8("status", uint8(resp.Status)).Msg("unknown retrieval status")
		retry, stallErr := c.retryLocked()
		return nil, retry, stallErr
	}
}

// retryLocked consumes one attempt from the retry budget and returns the
// request to re-send. When the budget is exhausted the pending request is
// dropped and a SyncStallError returned instead. Caller must hold the lock.
func (c *Core) retryLocked() (*messages.RequestBlock, error) {
	if c.pending.attempts >= c.config.MaxAttempts {
		stalled := model.SyncStallError{
			BlockID:  c.pending.blockID,
			Attempts: c.pending.attempts,
		}
		c.log.Warn().
			Str("target", stalled.BlockID.String()).
			Uint("attempts", stalled.Attempts).
			Msg("block retrieval stalled")
		c.pending = nil
		return nil, stalled
	}
	c.pending.attempts++
	return &messages.RequestBlock{
		BlockID:   c.pending.blockID,
		NumBlocks: c.pending.numBlocks,
	}, nil
}

// checkResponseBlocks validates that the response forms a parent-linked
// chain starting at the requested block, within the requested length.
func (c *Core) checkResponseBlocks(resp *messages.RespondBlock) ([]*libra.Block, error) {
	if len(resp.Blocks) == 0 {
		return nil, fmt.Errorf("response carries no blocks")
	}
	if uint64(len(resp.Blocks)) > c.pending.numBlocks {
		return nil, fmt.Errorf("response carries %d blocks, requested at most %d", len(resp.Blocks), c.pending.numBlocks)
	}

	blocks := make([]*libra.Block, 0, len(resp.Blocks))
	expectedID := c.pending.blockID
	for i := range resp.Blocks {
		block := &resp.Blocks[i]
		if block.ID() != expectedID {
			return nil, fmt.Errorf("block %d does not continue the requested chain", i)
		}
		blocks = append(blocks, block)
		expectedID = block.ParentID()
	}
	return blocks, nil
}
