package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/kengeo/libra/consensus/chainedbft"
)

// UpsertSafetyData stores the safety state of the local replica, overwriting
// any previous value.
func UpsertSafetyData(safetyData *chainedbft.SafetyData) func(*badger.Txn) error {
	return upsert(makePrefix(codeSafetyData), safetyData)
}

// RetrieveSafetyData retrieves the safety state of the local replica.
func RetrieveSafetyData(safetyData *chainedbft.SafetyData) func(*badger.Txn) error {
	return retrieve(makePrefix(codeSafetyData), safetyData)
}
