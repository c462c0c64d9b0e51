// Package hash provides the single hashing primitive the rest of the
// blockchain packages build on: SHA-256 over canonical JSON, and the
// leading-zero check used for proof of work. A block's identity hash is
// computed in the database package.
package hash

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ZeroHash represents a zero hash value, used by the genesis block's
// previous hash and anywhere a "no parent" sentinel is needed.
const ZeroHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Sum256 hashes the given bytes with SHA-256 and returns the raw digest.
func Sum256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Sum256Hex hashes the given bytes with SHA-256 and returns the result as
// a "0x"-prefixed hex string, the canonical hash representation used
// throughout this module.
func Sum256Hex(data []byte) string {
	return hexutil.Encode(Sum256(data))
}

// CanonicalJSON marshals v with encoding/json, which guarantees stable
// struct-field ordering (declaration order) and no whitespace variance.
// Every value hashed for consensus purposes must be serialized through
// this function, on every node, or hashes silently diverge.
func CanonicalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// HasLeadingZeros reports whether the hex hash has at least n leading
// hexadecimal zero characters after its "0x" prefix. This is the proof
// of work acceptance test.
func HasLeadingZeros(hexHash string, n int) bool {
	h := hexHash
	if len(h) >= 2 && h[0] == '0' && (h[1] == 'x' || h[1] == 'X') {
		h = h[2:]
	}

	if len(h) < n {
		return false
	}

	for i := 0; i < n; i++ {
		if h[i] != '0' {
			return false
		}
	}

	return true
}
