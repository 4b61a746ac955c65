package libra

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

// Identifier is a 32-byte unique identifier for an entity. Identifiers of
// blocks, votes and other consensus entities are computed as the SHA3-256
// hash of the entity's canonical CBOR encoding.
type Identifier [32]byte

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

// MakeID computes the identifier of an arbitrary entity by hashing its
// canonical encoding.
func MakeID(entity interface{}) Identifier {
	data, err := cbor.Marshal(entity)
	if err != nil {
		// all entity types in this package are encodable; failure here is a
		// symptom of an unencodable type sneaking in, which is a programming error
		panic(fmt.Sprintf("could not encode entity for ID computation: %v", err))
	}
	return HashToID(data)
}

// HashToID hashes the given data and returns the digest as an identifier.
func HashToID(data []byte) Identifier {
	return Identifier(sha3.Sum256(data))
}

// HexStringToIdentifier converts a hex string to an identifier. The input
// must be 64 characters long and contain only valid hex characters.
func HexStringToIdentifier(hexString string) (Identifier, error) {
	var id Identifier
	bz, err := hex.DecodeString(hexString)
	if err != nil {
		return id, fmt.Errorf("could not decode hex string: %w", err)
	}
	if len(bz) != len(id) {
		return id, fmt.Errorf("malformed input, expected %d bytes, got %d", len(id), len(bz))
	}
	copy(id[:], bz)
	return id, nil
}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// IdentifierList defines a sortable list of identifiers.
type IdentifierList []Identifier

// Lookup converts the identifier list into a set, removing duplicates.
func (il IdentifierList) Lookup() map[Identifier]struct{} {
	lookup := make(map[Identifier]struct{}, len(il))
	for _, id := range il {
		lookup[id] = struct{}{}
	}
	return lookup
}

// Contains returns whether the list contains the given identifier.
func (il IdentifierList) Contains(target Identifier) bool {
	for _, id := range il {
		if id == target {
			return true
		}
	}
	return false
}
