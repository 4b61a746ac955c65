package chainedbft

import (
	"github.com/kengeo/libra/model/libra"
)

// Committee supplies the per-epoch validator identities and voting power.
// It is consumed read-only; validator-set management is external.
type Committee interface {
	// Weight returns the voting power of the given participant in the given
	// epoch.
	// Expected error returns during normal operations:
	//   - model.InvalidSignerError if the participant is not a member of the
	//     epoch's validator set
	Weight(epoch uint64, participantID libra.Identifier) (uint64, error)

	// TotalWeight returns the total voting power of the epoch's validator set.
	TotalWeight(epoch uint64) (uint64, error)

	// QuorumThreshold returns the minimal voting power required for a quorum
	// certificate in the given epoch.
	QuorumThreshold(epoch uint64) (uint64, error)

	// Self returns our own participant identifier.
	Self() libra.Identifier
}

// ComputeWeightThresholdForBuildingQC returns the weight minimally required
// for building a certificate. Given totalWeight, we need the smallest
// integer t such that 2 * totalWeight / 3 < t.
func ComputeWeightThresholdForBuildingQC(totalWeight uint64) uint64 {
	// Formally: 2 * Floor(totalWeight/3) + max(1, totalWeight mod 3)
	floorOneThird := totalWeight / 3 // integer division, includes floor
	res := 2 * floorOneThird
	divRemainder := totalWeight % 3
	if divRemainder <= 1 {
		res = res + 1
	} else {
		res += divRemainder
	}
	return res
}
