package wallet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
)

const (
	// TxVersion ...
	TxVersion = 2
	// TxLocktime ...
	TxLocktime = 0
)

// UnsignedTxPlan is an unsigned transaction paying Target to the recipient
// and the change back to the wallet, together with the metadata an external
// signer needs to recognize its own keys.
type UnsignedTxPlan struct {
	ID          uuid.UUID
	Packet      *psbt.Packet
	Selection   *SelectionResult
	Recipient   string
	Change      *AddressRecord
	Fingerprint Fingerprint
}

// Fee returns the absolute fee paid by the transaction.
func (p *UnsignedTxPlan) Fee() int64 {
	return p.Selection.Fee
}

// B64Encode returns the base64 encoded psbt.
func (p *UnsignedTxPlan) B64Encode() (string, error) {
	return p.Packet.B64Encode()
}

// Serialize returns the psbt in binary format.
func (p *UnsignedTxPlan) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Packet.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildUnsignedTxOpts is the struct given to the BuildUnsignedTx method
type BuildUnsignedTxOpts struct {
	Selection   *SelectionResult
	Recipient   string
	Change      *AddressRecord
	Fingerprint Fingerprint
	Network     *chaincfg.Params
}

func (o BuildUnsignedTxOpts) validate() (btcutil.Address, error) {
	if o.Network == nil {
		return nil, ErrNullNetwork
	}
	if o.Selection == nil {
		return nil, ErrNullSelection
	}
	if len(o.Selection.Selected) <= 0 {
		return nil, ErrEmptyInputs
	}
	if o.Selection.Target <= 0 {
		return nil, ErrInvalidTarget
	}
	if o.Change == nil {
		return nil, ErrNullChangeRecord
	}
	if o.Change.Chain != Internal {
		return nil, ErrInvalidChangeChain
	}
	for _, u := range o.Selection.Selected {
		if u.Record == nil || len(u.Record.Path) <= 0 {
			return nil, fmt.Errorf("input %s: %w", u.Key(), ErrNullDerivationPath)
		}
	}

	addr, err := btcutil.DecodeAddress(strings.TrimSpace(o.Recipient), o.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecipientAddress, err)
	}
	if !addr.IsForNet(o.Network) {
		return nil, ErrInvalidRecipientAddress
	}
	return addr, nil
}

// BuildUnsignedTx assembles a version 2 transaction spending the selected
// coins into exactly two outputs, [payment, change], and wraps it into a
// psbt whose inputs and change output carry bip32 derivation info.
func BuildUnsignedTx(opts BuildUnsignedTxOpts) (*UnsignedTxPlan, error) {
	recipient, err := opts.validate()
	if err != nil {
		return nil, err
	}
	recipientScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecipientAddress, err)
	}

	selection := opts.Selection
	ins := make([]*wire.OutPoint, 0, len(selection.Selected))
	sequences := make([]uint32, 0, len(selection.Selected))
	for _, u := range selection.Selected {
		outpoint := u.OutPoint()
		ins = append(ins, &outpoint)
		sequences = append(sequences, wire.MaxTxInSequenceNum)
	}
	outs := []*wire.TxOut{
		wire.NewTxOut(selection.Target, recipientScript),
		wire.NewTxOut(selection.Change, opts.Change.Script),
	}

	packet, err := psbt.New(ins, outs, TxVersion, TxLocktime, sequences)
	if err != nil {
		return nil, err
	}

	fingerprint := opts.Fingerprint.Uint32()
	for i, u := range selection.Selected {
		script := u.Script
		if len(script) <= 0 {
			script = u.Record.Script
		}
		packet.Inputs[i].WitnessUtxo = wire.NewTxOut(u.Value, script)
		packet.Inputs[i].SighashType = txscript.SigHashAll
		packet.Inputs[i].Bip32Derivation = []*psbt.Bip32Derivation{
			bip32Derivation(u.Record, fingerprint),
		}
	}
	packet.Outputs[1].Bip32Derivation = []*psbt.Bip32Derivation{
		bip32Derivation(opts.Change, fingerprint),
	}

	if err := packet.SanityCheck(); err != nil {
		return nil, err
	}

	return &UnsignedTxPlan{
		ID:          uuid.New(),
		Packet:      packet,
		Selection:   selection,
		Recipient:   recipient.EncodeAddress(),
		Change:      opts.Change,
		Fingerprint: opts.Fingerprint,
	}, nil
}

func bip32Derivation(record *AddressRecord, fingerprint uint32) *psbt.Bip32Derivation {
	path := make([]uint32, len(record.Path))
	copy(path, record.Path)
	pubKey := make([]byte, len(record.PubKey))
	copy(pubKey, record.PubKey)

	return &psbt.Bip32Derivation{
		PubKey:               pubKey,
		MasterKeyFingerprint: fingerprint,
		Bip32Path:            path,
	}
}

// DecodePsbt parses a psbt either in base64 or in binary format.
func DecodePsbt(data []byte) (*psbt.Packet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) <= 0 {
		return nil, ErrNullPsbt
	}
	isBinary := bytes.HasPrefix(trimmed, []byte("psbt\xff"))
	if isBinary {
		trimmed = data
	}
	return psbt.NewFromRawBytes(bytes.NewReader(trimmed), !isBinary)
}

// ExtractSignedTx finalizes every input of a fully signed psbt and returns
// the network-ready transaction.
func ExtractSignedTx(packet *psbt.Packet) (*wire.MsgTx, error) {
	if packet == nil {
		return nil, ErrNullPsbt
	}
	if !packet.IsComplete() {
		if err := psbt.MaybeFinalizeAll(packet); err != nil {
			return nil, fmt.Errorf("finalize psbt: %w", err)
		}
	}
	return psbt.Extract(packet)
}
