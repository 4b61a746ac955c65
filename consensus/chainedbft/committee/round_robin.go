package committee

import (
	"bytes"
	"sort"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/model/libra"
)

// RoundRobin elects leaders by cycling through the validator set in
// canonical (byte-wise) identifier order. Deterministic across replicas as
// long as they agree on the set.
type RoundRobin struct {
	ordered libra.IdentifierList
}

var _ chainedbft.ProposerElection = (*RoundRobin)(nil)

// NewRoundRobin creates a round-robin election over the given participants.
func NewRoundRobin(participants libra.IdentifierList) *RoundRobin {
	ordered := make(libra.IdentifierList, len(participants))
	copy(ordered, participants)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})
	return &RoundRobin{ordered: ordered}
}

// LeaderForRound returns the leader of the given round.
func (r *RoundRobin) LeaderForRound(_ uint64, round uint64) libra.Identifier {
	return r.ordered[round%uint64(len(r.ordered))]
}
