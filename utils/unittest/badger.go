package unittest

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

// BadgerDB opens a badger database in the given directory, tuned for tests.
func BadgerDB(t testing.TB, dir string) *badger.DB {
	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	return db
}

// RunWithBadgerDB runs the test function against a fresh temporary database.
func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	db := BadgerDB(t, t.TempDir())
	defer db.Close()
	f(db)
}
