package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/kengeo/libra/model/libra"
)

const (
	// codes for consensus safety state
	codeSafetyData = 10
)

// makePrefix builds a storage key from a code byte and typed key parts.
func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, keyPartToBinary(key)...)
	}
	return prefix
}

func keyPartToBinary(v interface{}) []byte {
	switch i := v.(type) {
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case libra.Identifier:
		return i[:]
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
