package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Utxo is an unspent output owned by one of the wallet's addresses.
type Utxo struct {
	TxID   chainhash.Hash
	Vout   uint32
	Value  int64
	Script []byte
	// Height of the including block, 0 while in mempool.
	Height int64
	Record *AddressRecord
}

// OutPoint returns the reference to the output in wire format.
func (u Utxo) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.TxID, Index: u.Vout}
}

// Key returns the outpoint in the canonical txid:vout form.
func (u Utxo) Key() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// Confirmed returns whether the utxo has been included in a block.
func (u Utxo) Confirmed() bool {
	return u.Height > 0
}

// TxOut returns the output being spent, as needed for segwit signing.
func (u Utxo) TxOut() *wire.TxOut {
	return wire.NewTxOut(u.Value, u.Script)
}
