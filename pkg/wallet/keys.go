package wallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ChainKind identifies the branch of an account: receiving or change.
type ChainKind uint32

const (
	// External is the receiving chain (index 0).
	External ChainKind = iota
	// Internal is the change chain (index 1).
	Internal
)

func (c ChainKind) String() string {
	switch c {
	case External:
		return "external"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("chain(%d)", uint32(c))
	}
}

func (c ChainKind) valid() bool {
	return c == External || c == Internal
}

// AddressRecord holds everything needed to watch an address and later let an
// external signer recognize the key that controls it.
type AddressRecord struct {
	Address string
	Script  []byte
	Chain   ChainKind
	Index   uint32
	Path    DerivationPath
	PubKey  []byte
}

type keyVersion struct {
	mainnet bool
	private bool
}

// SLIP-132 version bytes for the single-sig serializations we accept.
var knownVersions = map[[4]byte]keyVersion{
	{0x04, 0x88, 0xb2, 0x1e}: {mainnet: true},                 // xpub
	{0x04, 0x9d, 0x7c, 0xb2}: {mainnet: true},                 // ypub
	{0x04, 0xb2, 0x47, 0x46}: {mainnet: true},                 // zpub
	{0x04, 0x35, 0x87, 0xcf}: {mainnet: false},                // tpub
	{0x04, 0x4a, 0x52, 0x62}: {mainnet: false},                // upub
	{0x04, 0x5f, 0x1c, 0xf6}: {mainnet: false},                // vpub
	{0x04, 0x88, 0xad, 0xe4}: {mainnet: true, private: true},  // xprv
	{0x04, 0x9d, 0x78, 0x78}: {mainnet: true, private: true},  // yprv
	{0x04, 0xb2, 0x43, 0x0c}: {mainnet: true, private: true},  // zprv
	{0x04, 0x35, 0x83, 0x94}: {mainnet: false, private: true}, // tprv
	{0x04, 0x4a, 0x4e, 0x28}: {mainnet: false, private: true}, // uprv
	{0x04, 0x5f, 0x18, 0xbc}: {mainnet: false, private: true}, // vprv
}

// NewMasterKeyOpts is the struct given to the NewMasterKey method
type NewMasterKeyOpts struct {
	// ExtendedKey is the account-level extended public key, in any of the
	// xpub/ypub/zpub (or testnet equivalent) serializations.
	ExtendedKey string
	// Network defaults to mainnet for mainnet serializations and testnet3
	// for testnet ones.
	Network *chaincfg.Params
	// AccountPath defaults to the BIP-84 first account for the network.
	AccountPath DerivationPath
}

func (o NewMasterKeyOpts) validate() (keyVersion, error) {
	if len(o.ExtendedKey) <= 0 {
		return keyVersion{}, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	decoded := base58.Decode(o.ExtendedKey)
	if len(decoded) < 4 {
		return keyVersion{}, fmt.Errorf("%w: not base58 encoded", ErrInvalidKey)
	}
	var version [4]byte
	copy(version[:], decoded[:4])

	v, ok := knownVersions[version]
	if !ok {
		return keyVersion{}, fmt.Errorf(
			"%w: unknown version %x", ErrInvalidKey, version,
		)
	}
	if v.private {
		return keyVersion{}, fmt.Errorf(
			"%w: private keys are not accepted", ErrInvalidKey,
		)
	}
	if o.Network != nil {
		isMainnet := o.Network.Net == chaincfg.MainNetParams.Net
		if isMainnet != v.mainnet {
			return keyVersion{}, fmt.Errorf(
				"%w: key does not belong to network %s",
				ErrInvalidKey, o.Network.Name,
			)
		}
	}
	if len(o.AccountPath) > 0 && o.AccountPath[len(o.AccountPath)-1] < hdkeychain.HardenedKeyStart {
		return keyVersion{}, fmt.Errorf(
			"%w: account path must end with a hardened component",
			ErrInvalidDerivationPath,
		)
	}
	return v, nil
}

// MasterKey is an immutable account-level extended public key bound to a
// network and to the derivation path it was exported at.
type MasterKey struct {
	key         *hdkeychain.ExtendedKey
	chains      map[ChainKind]*hdkeychain.ExtendedKey
	network     *chaincfg.Params
	accountPath DerivationPath
}

// NewMasterKey parses and normalizes the given extended public key.
func NewMasterKey(opts NewMasterKeyOpts) (*MasterKey, error) {
	version, err := opts.validate()
	if err != nil {
		return nil, err
	}

	net := opts.Network
	if net == nil {
		net = &chaincfg.TestNet3Params
		if version.mainnet {
			net = &chaincfg.MainNetParams
		}
	}
	accountPath := opts.AccountPath
	if len(accountPath) <= 0 {
		accountPath = AccountPathForNetwork(net)
	}

	parsed, err := hdkeychain.NewKeyFromString(opts.ExtendedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	if parsed.IsPrivate() {
		return nil, fmt.Errorf("%w: private keys are not accepted", ErrInvalidKey)
	}
	key, err := parsed.CloneWithVersion(net.HDPublicKeyID[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}

	chains := make(map[ChainKind]*hdkeychain.ExtendedKey, 2)
	for _, chain := range []ChainKind{External, Internal} {
		chainKey, err := key.Derive(uint32(chain))
		if err != nil {
			return nil, fmt.Errorf("%w: %s chain: %s", ErrInvalidKey, chain, err)
		}
		chains[chain] = chainKey
	}

	return &MasterKey{
		key:         key,
		chains:      chains,
		network:     net,
		accountPath: accountPath.Child(),
	}, nil
}

// ParseMasterKey is a shortcut for NewMasterKey with network and account
// path inferred from the key serialization.
func ParseMasterKey(extendedKey string) (*MasterKey, error) {
	return NewMasterKey(NewMasterKeyOpts{ExtendedKey: extendedKey})
}

// Network returns the chain params the key is bound to.
func (m *MasterKey) Network() *chaincfg.Params {
	return m.network
}

// AccountPath returns a copy of the account-level derivation path.
func (m *MasterKey) AccountPath() DerivationPath {
	return m.accountPath.Child()
}

// String returns the key serialized with the network's standard xpub/tpub
// version bytes.
func (m *MasterKey) String() string {
	return m.key.String()
}

// Derive returns the p2wpkh address record at <account>/chain/index.
func (m *MasterKey) Derive(chain ChainKind, index uint32) (*AddressRecord, error) {
	if !chain.valid() {
		return nil, fmt.Errorf("%w: unknown %s", ErrDerivation, chain)
	}
	if index > MaxNonHardenedIndex {
		return nil, fmt.Errorf(
			"%w: index %d exceeds non-hardened range on %s chain",
			ErrDerivation, index, chain,
		)
	}

	child, err := m.chains[chain].Derive(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%d: %s", ErrDerivation, chain, index, err)
	}
	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%d: %s", ErrDerivation, chain, index, err)
	}
	serializedPubKey := pubKey.SerializeCompressed()

	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(serializedPubKey), m.network,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%d: %s", ErrDerivation, chain, index, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%d: %s", ErrDerivation, chain, index, err)
	}

	return &AddressRecord{
		Address: addr.EncodeAddress(),
		Script:  script,
		Chain:   chain,
		Index:   index,
		Path:    m.accountPath.Child(uint32(chain), index),
		PubKey:  serializedPubKey,
	}, nil
}

// Addresses derives count consecutive records of the given chain starting
// at index from.
func (m *MasterKey) Addresses(
	chain ChainKind, from, count uint32,
) ([]*AddressRecord, error) {
	records := make([]*AddressRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		record, err := m.Derive(chain, from+i)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Owns returns whether the record was derived from this master key.
func (m *MasterKey) Owns(record *AddressRecord) bool {
	if record == nil {
		return false
	}
	derived, err := m.Derive(record.Chain, record.Index)
	if err != nil {
		return false
	}
	return bytes.Equal(derived.Script, record.Script)
}
