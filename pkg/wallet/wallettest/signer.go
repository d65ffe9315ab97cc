// Package wallettest provides a software signing account to exercise the
// watch-only wallet end to end in tests.
package wallettest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/rustaceanrob/coinline/pkg/wallet"
)

// Account is a BIP-84 account whose private keys are known, as a hardware
// device would hold them.
type Account struct {
	master      *hdkeychain.ExtendedKey
	Fingerprint wallet.Fingerprint
	Xpub        string
	Network     *chaincfg.Params
}

// NewAccount derives the first BIP-84 account from the given seed.
func NewAccount(seed []byte, net *chaincfg.Params) (*Account, error) {
	master, err := hdkeychain.NewMaster(seed, net)
	if err != nil {
		return nil, err
	}
	masterPub, err := master.ECPubKey()
	if err != nil {
		return nil, err
	}
	var fp wallet.Fingerprint
	copy(fp[:], btcutil.Hash160(masterPub.SerializeCompressed())[:4])

	account := master
	for _, i := range wallet.AccountPathForNetwork(net) {
		if account, err = account.Derive(i); err != nil {
			return nil, err
		}
	}
	xpub, err := account.Neuter()
	if err != nil {
		return nil, err
	}

	return &Account{
		master:      master,
		Fingerprint: fp,
		Xpub:        xpub.String(),
		Network:     net,
	}, nil
}

// MasterKey returns the watch-only counterpart of the account.
func (a *Account) MasterKey() (*wallet.MasterKey, error) {
	return wallet.NewMasterKey(wallet.NewMasterKeyOpts{
		ExtendedKey: a.Xpub,
		Network:     a.Network,
	})
}

// SignPsbt adds a partial signature to every input whose bip32 derivation
// matches the account fingerprint, like an external signer would.
func (a *Account) SignPsbt(packet *psbt.Packet) error {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range packet.UnsignedTx.TxIn {
		if packet.Inputs[i].WitnessUtxo == nil {
			return fmt.Errorf("input %d: missing witness utxo", i)
		}
		fetcher.AddPrevOut(in.PreviousOutPoint, packet.Inputs[i].WitnessUtxo)
	}
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	for i := range packet.Inputs {
		in := &packet.Inputs[i]
		for _, derivation := range in.Bip32Derivation {
			if derivation.MasterKeyFingerprint != a.Fingerprint.Uint32() {
				continue
			}
			key := a.master
			var err error
			for _, step := range derivation.Bip32Path {
				if key, err = key.Derive(step); err != nil {
					return err
				}
			}
			privKey, err := key.ECPrivKey()
			if err != nil {
				return err
			}
			pubKey := privKey.PubKey().SerializeCompressed()
			if !bytes.Equal(pubKey, derivation.PubKey) {
				return fmt.Errorf("input %d: pubkey does not match derivation", i)
			}

			sig, err := txscript.RawTxInWitnessSignature(
				packet.UnsignedTx, sigHashes, i, in.WitnessUtxo.Value,
				in.WitnessUtxo.PkScript, in.SighashType, privKey,
			)
			if err != nil {
				return err
			}
			in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
				PubKey:    pubKey,
				Signature: sig,
			})
		}
	}
	return nil
}

// Sign returns a signed copy of the plan's psbt, leaving the plan untouched.
func (a *Account) Sign(
	ctx context.Context, plan *wallet.UnsignedTxPlan,
) (*psbt.Packet, error) {
	raw, err := plan.Serialize()
	if err != nil {
		return nil, err
	}
	packet, err := wallet.DecodePsbt(raw)
	if err != nil {
		return nil, err
	}
	if err := a.SignPsbt(packet); err != nil {
		return nil, err
	}
	return packet, nil
}
