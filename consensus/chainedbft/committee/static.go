// Package committee provides validator-set implementations of the consensus
// committee interface.
package committee

import (
	"fmt"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

// Static is a committee with a fixed validator set that is identical across
// epochs. It serves deployments where validator-set reconfiguration happens
// out of band, and tests.
type Static struct {
	self        libra.Identifier
	weights     map[libra.Identifier]uint64
	totalWeight uint64
	threshold   uint64
}

var _ chainedbft.Committee = (*Static)(nil)

// NewStatic creates a static committee from the given weight assignment.
// The set must be non-empty and self must be a member.
func NewStatic(self libra.Identifier, weights map[libra.Identifier]uint64) (*Static, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("validator set must not be empty")
	}
	if _, ok := weights[self]; !ok {
		return nil, fmt.Errorf("self (%v) must be a member of the validator set", self)
	}

	total := uint64(0)
	for id, weight := range weights {
		if weight == 0 {
			return nil, fmt.Errorf("validator %v must have positive weight", id)
		}
		total += weight
	}

	// the committee owns its map, callers keep theirs
	owned := make(map[libra.Identifier]uint64, len(weights))
	for id, weight := range weights {
		owned[id] = weight
	}

	return &Static{
		self:        self,
		weights:     owned,
		totalWeight: total,
		threshold:   chainedbft.ComputeWeightThresholdForBuildingQC(total),
	}, nil
}

// Weight returns the voting power of the given participant.
// Expected error returns during normal operations:
//   - model.InvalidSignerError if the participant is not a set member
func (s *Static) Weight(_ uint64, participantID libra.Identifier) (uint64, error) {
	weight, ok := s.weights[participantID]
	if !ok {
		return 0, model.NewInvalidSignerErrorf("participant %v is not a member of the validator set", participantID)
	}
	return weight, nil
}

// TotalWeight returns the total voting power of the set.
func (s *Static) TotalWeight(_ uint64) (uint64, error) {
	return s.totalWeight, nil
}

// QuorumThreshold returns the minimal voting power for building a
// certificate.
func (s *Static) QuorumThreshold(_ uint64) (uint64, error) {
	return s.threshold, nil
}

// Self returns our own participant identifier.
func (s *Static) Self() libra.Identifier {
	return s.self
}

// Members returns the participant identifiers of the set, in unspecified
// order.
func (s *Static) Members() libra.IdentifierList {
	members := make(libra.IdentifierList, 0, len(s.weights))
	for id := range s.weights {
		members = append(members, id)
	}
	return members
}
