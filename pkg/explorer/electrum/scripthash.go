package electrum

import (
	"crypto/sha256"
	"encoding/hex"
)

// ScriptHash returns the key electrum servers index an output script by: the
// sha256 of the script in reversed byte order, hex encoded.
func ScriptHash(script []byte) string {
	h := sha256.Sum256(script)
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
	return hex.EncodeToString(h[:])
}
