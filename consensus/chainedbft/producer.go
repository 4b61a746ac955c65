package chainedbft

import (
	"github.com/kengeo/libra/model/libra"
)

// ProposerElection determines the round leader. The election policy
// (round-robin, stake-weighted, reputation) is external configuration; the
// engine only asks who leads.
type ProposerElection interface {
	// LeaderForRound returns the identifier of the round's leader.
	LeaderForRound(epoch uint64, round uint64) libra.Identifier
}

// BlockProducer assembles and signs proposals when the local replica leads
// the round.
type BlockProducer interface {
	// MakeBlockProposal builds a signed proposal for the given round,
	// extending the block certified by the given quorum certificate.
	MakeBlockProposal(epoch uint64, round uint64, highestQC *libra.QuorumCert) (*libra.Block, error)
}
