// Package signing provides the one remaining use for go-ethereum's crypto
// primitives once EIP-712 wallet signing is dropped: a deterministic,
// non-reversible fingerprint of the configured API key, logged at startup
// so operators can correlate a running process with a credential across
// log aggregators without ever logging the key itself.
package signing

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// Fingerprint returns the first 8 bytes of Keccak256(apiKey) as hex, stable
// for a given key but not invertible to recover it.
func Fingerprint(apiKey string) string {
	sum := crypto.Keccak256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}
