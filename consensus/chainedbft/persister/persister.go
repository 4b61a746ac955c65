// Package persister implements durable storage of the consensus safety
// state. Safety data must hit disk before the corresponding vote or timeout
// leaves the process, otherwise a crash could lead to equivocation.
package persister

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/storage/badger/operation"
)

// Persister stores the safety state in a badger database. Implements
// chainedbft.Persister.
type Persister struct {
	db *badger.DB
}

var _ chainedbft.Persister = (*Persister)(nil)

// New creates a persister backed by the given database handle.
func New(db *badger.DB) *Persister {
	return &Persister{db: db}
}

// GetSafetyData loads the stored safety state.
// Expected error returns during normal operations:
//   - storage.ErrNotFound if no safety state was ever persisted
func (p *Persister) GetSafetyData() (*chainedbft.SafetyData, error) {
	var data chainedbft.SafetyData
	err := p.db.View(operation.RetrieveSafetyData(&data))
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// PutSafetyData overwrites the stored safety state. The write is durable
// once the call returns.
func (p *Persister) PutSafetyData(safetyData *chainedbft.SafetyData) error {
	return operation.RetryOnConflict(p.db.Update, operation.UpsertSafetyData(safetyData))
}
