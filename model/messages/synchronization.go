package messages

import (
	"github.com/kengeo/libra/model/libra"
)

// BlockRetrievalStatus reports the outcome of a block retrieval request.
type BlockRetrievalStatus uint8

const (
	// BlockRetrievalStatusSucceeded means all requested blocks were found.
	BlockRetrievalStatusSucceeded BlockRetrievalStatus = 0
	// BlockRetrievalStatusIDNotFound means the responder does not know the
	// requested block at all.
	BlockRetrievalStatusIDNotFound BlockRetrievalStatus = 1
	// BlockRetrievalStatusNotEnoughBlocks means the responder found the
	// requested block but fewer ancestors than asked for.
	BlockRetrievalStatusNotEnoughBlocks BlockRetrievalStatus = 2
)

func (s BlockRetrievalStatus) String() string {
	switch s {
	case BlockRetrievalStatusSucceeded:
		return "SUCCEEDED"
	case BlockRetrievalStatusIDNotFound:
		return "ID_NOT_FOUND"
	case BlockRetrievalStatusNotEnoughBlocks:
		return "NOT_ENOUGH_BLOCKS"
	default:
		return "UNKNOWN"
	}
}

// RequestBlock asks a peer for the block with the given ID and up to
// NumBlocks-1 of its ancestors.
type RequestBlock struct {
	BlockID   libra.Identifier `cbor:"1,keyasint"`
	NumBlocks uint64           `cbor:"2,keyasint"`
}

// RespondBlock is the reply to a RequestBlock. Blocks are ordered from the
// requested block towards its ancestors; the requester correlates the reply
// with its in-flight request by the leading block's ID.
type RespondBlock struct {
	Status BlockRetrievalStatus `cbor:"1,keyasint"`
	Blocks []libra.Block        `cbor:"2,keyasint"`
}
