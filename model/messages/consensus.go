package messages

import (
	"github.com/kengeo/libra/model/libra"
)

// Proposal is a leader's block proposal for a round, bundled with the
// leader's state summary so that lagging replicas can detect the gap and
// start catching up from the same message.
type Proposal struct {
	ProposedBlock libra.Block    `cbor:"1,keyasint"`
	SyncInfo      libra.SyncInfo `cbor:"2,keyasint"`
}

// Vote is a replica's endorsement of a proposal, forwarded to the round's
// vote collector.
type Vote struct {
	Vote libra.Vote `cbor:"1,keyasint"`
}

// SyncInfo is a standalone state summary exchange, sent when a replica wants
// to advertise its certified state outside of a proposal or vote.
type SyncInfo struct {
	SyncInfo libra.SyncInfo `cbor:"1,keyasint"`
}
