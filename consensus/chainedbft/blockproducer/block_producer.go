// Package blockproducer assembles block proposals on top of the highest
// known quorum certificate.
package blockproducer

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/model/libra"
)

// PayloadBuilder supplies the application payload for a new proposal.
// Payload construction (mempool draining, deduplication against ancestors)
// is external to consensus.
type PayloadBuilder interface {
	// BuildPayload returns the payload for a block extending the given parent.
	BuildPayload(parentID libra.Identifier) ([]byte, error)
}

// BlockProducer signs proposals with the local replica's key. It must only
// be invoked when the replica leads the round.
type BlockProducer struct {
	log      zerolog.Logger
	signer   chainedbft.Signer
	payloads PayloadBuilder
}

// New creates a block producer.
func New(log zerolog.Logger, signer chainedbft.Signer, payloads PayloadBuilder) *BlockProducer {
	return &BlockProducer{
		log:      log.With().Str("component", "block_producer").Logger(),
		signer:   signer,
		payloads: payloads,
	}
}

// MakeBlockProposal builds and signs a proposal for the given round,
// extending the block certified by the given quorum certificate.
func (bp *BlockProducer) MakeBlockProposal(epoch uint64, round uint64, highestQC *libra.QuorumCert) (*libra.Block, error) {
	if round <= highestQC.Round() {
		return nil, fmt.Errorf("proposal round (%d) must be above certified round (%d)", round, highestQC.Round())
	}

	payload, err := bp.payloads.BuildPayload(highestQC.CertifiedBlockID())
	if err != nil {
		return nil, fmt.Errorf("could not build payload: %w", err)
	}

	block := &libra.Block{
		Payload:        payload,
		Epoch:          epoch,
		Round:          round,
		TimestampUsecs: uint64(time.Now().UnixMicro()),
		QuorumCert:     *highestQC,
	}
	err = bp.signer.SignBlock(block)
	if err != nil {
		return nil, fmt.Errorf("could not sign block proposal: %w", err)
	}

	bp.log.Debug().
		Uint64("round", round).
		Str("block_id", block.ID().String()).
		Str("parent_id", block.ParentID().String()).
		Msg("block proposal built")
	return block, nil
}
