package chainsync

import (
	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/model/messages"
)

// Provider answers block retrieval requests from the local block tree.
type Provider struct {
	log                 zerolog.Logger
	maxBlocksPerRequest uint64
	tree                chainedbft.BlockTree
}

// NewProvider creates a provider over the given block tree.
func NewProvider(log zerolog.Logger, config Config, tree chainedbft.BlockTree) *Provider {
	return &Provider{
		log:                 log.With().Str("component", "sync_provider").Logger(),
		maxBlocksPerRequest: config.MaxBlocksPerRequest,
		tree:                tree,
	}
}

// HandleRequestBlock serves the requested block and its ancestors, ordered
// from the requested block towards the root. The response status reports
// full success, a truncated chain, or an unknown block ID.
func (p *Provider) HandleRequestBlock(req *messages.RequestBlock) *messages.RespondBlock {
	numBlocks := req.NumBlocks
	if numBlocks == 0 {
		numBlocks = 1
	}
	if numBlocks > p.maxBlocksPerRequest {
		numBlocks = p.maxBlocksPerRequest
	}

	ancestors, err := p.tree.Ancestors(req.BlockID, numBlocks)
	if err != nil {
		if !model.IsMissingBlockError(err) {
			p.log.Err(err).Str("block_id", req.BlockID.String()).Msg("could not look up ancestors")
		}
		return &messages.RespondBlock{
			Status: messages.BlockRetrievalStatusIDNotFound,
		}
	}

	blocks := make([]libra.Block, 0, len(ancestors))
	for _, block := range ancestors {
		blocks = append(blocks, *block)
	}

	status := messages.BlockRetrievalStatusSucceeded
	if uint64(len(blocks)) < numBlocks {
		status = messages.BlockRetrievalStatusNotEnoughBlocks
	}
	return &messages.RespondBlock{
		Status: status,
		Blocks: blocks,
	}
}
