package wallet

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// DerivationPath is the internal representation of a hierarchical
// deterministic wallet path
type DerivationPath []uint32

const (
	// PurposeP2WPKH is the BIP-84 purpose for native segwit single key wallets.
	PurposeP2WPKH = 84
	// MaxNonHardenedIndex is the greatest index usable for a non-hardened child.
	MaxNonHardenedIndex = hdkeychain.HardenedKeyStart - 1
)

var (
	// DefaultAccountPath m/84'/0'/0'
	DefaultAccountPath = DerivationPath{
		hdkeychain.HardenedKeyStart + PurposeP2WPKH,
		hdkeychain.HardenedKeyStart + 0,
		hdkeychain.HardenedKeyStart + 0,
	}
	// DefaultTestAccountPath m/84'/1'/0'
	DefaultTestAccountPath = DerivationPath{
		hdkeychain.HardenedKeyStart + PurposeP2WPKH,
		hdkeychain.HardenedKeyStart + 1,
		hdkeychain.HardenedKeyStart + 0,
	}
)

// AccountPathForNetwork returns the first BIP-84 account path for the given
// network. Coin type is 0 for mainnet and 1 for every test network.
func AccountPathForNetwork(params *chaincfg.Params) DerivationPath {
	if params != nil && params.Net == chaincfg.MainNetParams.Net {
		return DefaultAccountPath
	}
	return DefaultTestAccountPath
}

// ParseDerivationPath converts a derivation path string to the
// internal binary representation
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	var path DerivationPath

	elems := strings.Split(strPath, "/")
	switch {
	case strPath == "":
		return nil, ErrNullDerivationPath

	case containsEmptyString(elems):
		return nil, ErrMalformedDerivationPath
	case len(elems) < 2:
		return nil, ErrMalformedDerivationPath

	default:
		if strings.TrimSpace(elems[0]) == "m" {
			elems = elems[1:]
		}
	}

	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("%w: invalid elem '%s'", ErrInvalidDerivationPath, elem)
		}

		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf(
					"%w: elem %v must be in range [0, %d]",
					ErrInvalidDerivationPath, bigval, max,
				)
			}
			return nil, fmt.Errorf(
				"%w: elem %v must be in hardened range [0, %d]",
				ErrInvalidDerivationPath, bigval, max,
			)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

// Child returns a copy of the path extended with the given components.
func (path DerivationPath) Child(components ...uint32) DerivationPath {
	child := make(DerivationPath, 0, len(path)+len(components))
	child = append(child, path...)
	return append(child, components...)
}

// String converts a binary derivation path to its canonical representation
func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}

	result := "m"
	for _, component := range path {
		var hardened bool
		if component >= hdkeychain.HardenedKeyStart {
			component -= hdkeychain.HardenedKeyStart
			hardened = true
		}
		result = fmt.Sprintf("%s/%d", result, component)
		if hardened {
			result += "'"
		}
	}
	return result
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}
