package application_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rustaceanrob/coinline/pkg/explorer/explorertest"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/rustaceanrob/coinline/pkg/wallet/wallettest"
	"github.com/stretchr/testify/require"
)

var (
	ctx = context.Background()

	// Script of an address the wallet does not own.
	foreignScript = append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0xee}, 20)...)
)

type fixture struct {
	account *wallettest.Account
	master  *wallet.MasterKey
	chain   *explorertest.Chain
	nonce   byte
}

func newFixture(t *testing.T) *fixture {
	account, err := wallettest.NewAccount(
		bytes.Repeat([]byte{0x01}, 32), &chaincfg.MainNetParams,
	)
	require.NoError(t, err)
	master, err := account.MasterKey()
	require.NoError(t, err)

	return &fixture{
		account: account,
		master:  master,
		chain:   explorertest.NewChain(),
	}
}

func (f *fixture) record(t *testing.T, chain wallet.ChainKind, index uint32) *wallet.AddressRecord {
	record, err := f.master.Derive(chain, index)
	require.NoError(t, err)
	return record
}

// fund adds a coinbase-like tx paying value to the given wallet address.
func (f *fixture) fund(
	t *testing.T, chain wallet.ChainKind, index uint32, value, height int64,
) chainhash.Hash {
	return f.fundScript(f.record(t, chain, index).Script, value, height)
}

// fundScript adds a coinbase-like tx paying value to script.
func (f *fixture) fundScript(script []byte, value, height int64) chainhash.Hash {
	f.nonce++
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		[]byte{0x01, f.nonce}, nil,
	))
	tx.AddTxOut(wire.NewTxOut(value, script))
	return f.chain.AddTx(tx, height)
}

type output struct {
	script []byte
	value  int64
}

// spend adds a tx spending the given outpoints into the given outputs.
func (f *fixture) spend(
	ins []wire.OutPoint, outs []output, height int64,
) chainhash.Hash {
	tx := wire.NewMsgTx(2)
	for i := range ins {
		tx.AddTxIn(wire.NewTxIn(&ins[i], nil, nil))
	}
	for _, out := range outs {
		tx.AddTxOut(wire.NewTxOut(out.value, out.script))
	}
	return f.chain.AddTx(tx, height)
}
