package wallet

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint is the first 4 bytes of the HASH160 of the root public key of
// the signing device, used by signers to recognize their own derivations.
type Fingerprint [4]byte

// ParseFingerprint parses a fingerprint from its 8 hex chars representation.
func ParseFingerprint(str string) (Fingerprint, error) {
	var fp Fingerprint

	str = strings.TrimPrefix(strings.TrimSpace(str), "0x")
	buf, err := hex.DecodeString(str)
	if err != nil || len(buf) != len(fp) {
		return fp, fmt.Errorf("%w: got %q", ErrInvalidFingerprint, str)
	}
	copy(fp[:], buf)
	return fp, nil
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Uint32 returns the fingerprint as stored in PSBT bip32 derivation fields,
// which read the 4 serialized bytes as a little endian integer.
func (f Fingerprint) Uint32() uint32 {
	return binary.LittleEndian.Uint32(f[:])
}
