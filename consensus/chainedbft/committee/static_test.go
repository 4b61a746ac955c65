package committee

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/utils/unittest"
)

func TestNewStatic(t *testing.T) {
	validators := unittest.IdentifierListFixture(4)

	t.Run("valid", func(t *testing.T) {
		com, err := NewStatic(validators[0], unittest.EqualWeights(validators))
		require.NoError(t, err)
		require.Equal(t, validators[0], com.Self())
		require.Len(t, com.Members(), 4)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewStatic(validators[0], nil)
		require.Error(t, err)
	})

	t.Run("self not a member", func(t *testing.T) {
		_, err := NewStatic(unittest.IdentifierFixture(), unittest.EqualWeights(validators))
		require.Error(t, err)
	})

	t.Run("zero weight", func(t *testing.T) {
		weights := unittest.EqualWeights(validators)
		weights[validators[1]] = 0
		_, err := NewStatic(validators[0], weights)
		require.Error(t, err)
	})
}

func TestWeight(t *testing.T) {
	validators := unittest.IdentifierListFixture(4)
	weights := unittest.EqualWeights(validators)
	weights[validators[2]] = 10
	com, err := NewStatic(validators[0], weights)
	require.NoError(t, err)

	weight, err := com.Weight(1, validators[2])
	require.NoError(t, err)
	require.Equal(t, uint64(10), weight)

	_, err = com.Weight(1, unittest.IdentifierFixture())
	require.Error(t, err)
	require.True(t, model.IsInvalidSignerError(err))
}

// TestQuorumThreshold checks the minimal weight guaranteeing overlap between
// any two quorums in at least one honest validator.
func TestQuorumThreshold(t *testing.T) {
	cases := []struct {
		validators int
		threshold  uint64
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 4},
		{6, 5},
		{7, 5},
		{10, 7},
	}
	for _, tc := range cases {
		validators := unittest.IdentifierListFixture(tc.validators)
		com, err := NewStatic(validators[0], unittest.EqualWeights(validators))
		require.NoError(t, err)

		total, err := com.TotalWeight(1)
		require.NoError(t, err)
		require.Equal(t, uint64(tc.validators), total)

		threshold, err := com.QuorumThreshold(1)
		require.NoError(t, err)
		require.Equalf(t, tc.threshold, threshold, "%d validators", tc.validators)
	}
}

func TestRoundRobin(t *testing.T) {
	validators := unittest.IdentifierListFixture(4)
	election := NewRoundRobin(validators)

	// deterministic regardless of input order
	reversed := make(libra.IdentifierList, len(validators))
	for i, id := range validators {
		reversed[len(validators)-1-i] = id
	}
	other := NewRoundRobin(reversed)
	for round := uint64(0); round < 12; round++ {
		require.Equal(t, election.LeaderForRound(1, round), other.LeaderForRound(1, round))
	}

	// every validator leads exactly once per cycle
	seen := make(map[libra.Identifier]int)
	for round := uint64(0); round < 8; round++ {
		seen[election.LeaderForRound(1, round)]++
	}
	require.Len(t, seen, 4)
	for _, count := range seen {
		require.Equal(t, 2, count)
	}
}
