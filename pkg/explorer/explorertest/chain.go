// Package explorertest provides an in-memory explorer.Service that indexes
// the transactions added to it the way a block explorer would.
package explorertest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/shopspring/decimal"
)

// Method names accepted by SetError and Calls.
const (
	MethodGetHistory       = "GetHistory"
	MethodGetBalance       = "GetBalance"
	MethodListUnspent      = "ListUnspent"
	MethodGetTransaction   = "GetTransaction"
	MethodEstimateFeeRate  = "EstimateFeeRate"
	MethodEstimateFeeRates = "EstimateFeeRates"
	MethodBroadcast        = "Broadcast"
)

// ErrTxNotFound ...
var ErrTxNotFound = errors.New("transaction not found")

var (
	_ explorer.Service      = (*Chain)(nil)
	_ explorer.FeeEstimator = (*Chain)(nil)
)

type confirmedTx struct {
	tx     *wire.MsgTx
	height int64
}

// Chain is a fake provider. Transactions are indexed by output script as
// they are added, spent outputs are removed from the unspent set.
// It is safe for concurrent use.
type Chain struct {
	lock sync.Mutex

	txs      map[chainhash.Hash]confirmedTx
	history  map[string][]explorer.HistoryItem
	balances map[string]explorer.Balance
	unspents map[string][]explorer.Unspent

	feeRates  map[int]decimal.Decimal
	broadcast []*wire.MsgTx

	errs        map[string]error
	scriptErrs  map[string]error
	calls       map[string]int
	scriptCalls map[string]int
}

// NewChain returns an empty chain with a flat 1 sat/vB fee rate for every
// target.
func NewChain() *Chain {
	return &Chain{
		txs:         make(map[chainhash.Hash]confirmedTx),
		history:     make(map[string][]explorer.HistoryItem),
		balances:    make(map[string]explorer.Balance),
		unspents:    make(map[string][]explorer.Unspent),
		feeRates:    map[int]decimal.Decimal{1: decimal.NewFromInt(1)},
		errs:        make(map[string]error),
		scriptErrs:  make(map[string]error),
		calls:       make(map[string]int),
		scriptCalls: make(map[string]int),
	}
}

// AddTx indexes tx at the given height, 0 meaning mempool. Inputs spending
// outputs of previously added txs update the history, balance and unspents
// of the spent scripts.
func (c *Chain) AddTx(tx *wire.MsgTx, height int64) chainhash.Hash {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.addTx(tx, height)
}

func (c *Chain) addTx(tx *wire.MsgTx, height int64) chainhash.Hash {
	txid := tx.TxHash()
	c.txs[txid] = confirmedTx{tx, height}
	item := explorer.HistoryItem{TxID: txid, Height: height}

	for _, in := range tx.TxIn {
		prev, ok := c.txs[in.PreviousOutPoint.Hash]
		if !ok || int(in.PreviousOutPoint.Index) >= len(prev.tx.TxOut) {
			continue
		}
		out := prev.tx.TxOut[in.PreviousOutPoint.Index]
		key := scriptKey(out.PkScript)
		c.addHistory(key, item)
		c.updateBalance(key, -out.Value, height)

		unspents := c.unspents[key][:0]
		for _, u := range c.unspents[key] {
			if u.TxID == in.PreviousOutPoint.Hash && u.Vout == in.PreviousOutPoint.Index {
				continue
			}
			unspents = append(unspents, u)
		}
		c.unspents[key] = unspents
	}

	for vout, out := range tx.TxOut {
		key := scriptKey(out.PkScript)
		c.addHistory(key, item)
		c.updateBalance(key, out.Value, height)
		c.unspents[key] = append(c.unspents[key], explorer.Unspent{
			TxID:   txid,
			Vout:   uint32(vout),
			Value:  out.Value,
			Height: height,
		})
	}
	return txid
}

func (c *Chain) addHistory(key string, item explorer.HistoryItem) {
	for _, h := range c.history[key] {
		if h.TxID == item.TxID {
			return
		}
	}
	c.history[key] = append(c.history[key], item)
}

func (c *Chain) updateBalance(key string, delta, height int64) {
	b := c.balances[key]
	if height > 0 {
		b.Confirmed += delta
	} else {
		b.Unconfirmed += delta
	}
	c.balances[key] = b
}

// SetFeeRates replaces the target -> sat/vB table.
func (c *Chain) SetFeeRates(rates map[int]decimal.Decimal) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.feeRates = rates
}

// SetError makes every call of the given method fail with err. A nil err
// clears it.
func (c *Chain) SetError(method string, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err == nil {
		delete(c.errs, method)
		return
	}
	c.errs[method] = err
}

// SetScriptError makes every script query for the given script fail.
func (c *Chain) SetScriptError(script []byte, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.scriptErrs[scriptKey(script)] = err
}

// Calls returns how many times the given method has been called.
func (c *Chain) Calls(method string) int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.calls[method]
}

// ScriptCalls returns how many times the given method has been called for
// the given script.
func (c *Chain) ScriptCalls(method string, script []byte) int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.scriptCalls[method+":"+scriptKey(script)]
}

// Broadcasted returns the txs received by Broadcast, in order.
func (c *Chain) Broadcasted() []*wire.MsgTx {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]*wire.MsgTx(nil), c.broadcast...)
}

func (c *Chain) enter(method string, script []byte) error {
	c.calls[method]++
	if script != nil {
		key := scriptKey(script)
		c.scriptCalls[method+":"+key]++
		if err := c.scriptErrs[key]; err != nil {
			return explorer.NewProviderError(method, key, err)
		}
	}
	if err := c.errs[method]; err != nil {
		return explorer.NewProviderError(method, "", err)
	}
	return nil
}

func (c *Chain) GetHistory(
	ctx context.Context, script []byte,
) ([]explorer.HistoryItem, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.enter(MethodGetHistory, script); err != nil {
		return nil, err
	}
	return append([]explorer.HistoryItem{}, c.history[scriptKey(script)]...), nil
}

func (c *Chain) GetBalance(
	ctx context.Context, script []byte,
) (*explorer.Balance, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.enter(MethodGetBalance, script); err != nil {
		return nil, err
	}
	b := c.balances[scriptKey(script)]
	return &b, nil
}

func (c *Chain) ListUnspent(
	ctx context.Context, script []byte,
) ([]explorer.Unspent, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.enter(MethodListUnspent, script); err != nil {
		return nil, err
	}
	return append([]explorer.Unspent{}, c.unspents[scriptKey(script)]...), nil
}

func (c *Chain) GetTransaction(
	ctx context.Context, txid chainhash.Hash,
) (*wire.MsgTx, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.enter(MethodGetTransaction, nil); err != nil {
		return nil, err
	}
	tx, ok := c.txs[txid]
	if !ok {
		return nil, explorer.NewProviderError(MethodGetTransaction, txid.String(), ErrTxNotFound)
	}
	return tx.tx.Copy(), nil
}

func (c *Chain) EstimateFeeRate(
	ctx context.Context, blocks int,
) (decimal.Decimal, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.enter(MethodEstimateFeeRate, nil); err != nil {
		return decimal.Zero, err
	}
	rate, err := explorer.PickFeeRate(c.feeRates, blocks)
	if err != nil {
		return decimal.Zero, explorer.NewProviderError(
			MethodEstimateFeeRate, fmt.Sprint(blocks), err,
		)
	}
	return rate, nil
}

// EstimateFeeRates returns a copy of the configured fee table.
func (c *Chain) EstimateFeeRates(
	ctx context.Context,
) (map[int]decimal.Decimal, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.enter(MethodEstimateFeeRates, nil); err != nil {
		return nil, err
	}
	rates := make(map[int]decimal.Decimal, len(c.feeRates))
	for blocks, rate := range c.feeRates {
		rates[blocks] = rate
	}
	return rates, nil
}

// Broadcast records tx and adds it to the mempool.
func (c *Chain) Broadcast(
	ctx context.Context, tx *wire.MsgTx,
) (*chainhash.Hash, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.enter(MethodBroadcast, nil); err != nil {
		return nil, err
	}
	c.broadcast = append(c.broadcast, tx.Copy())
	txid := c.addTx(tx.Copy(), 0)
	return &txid, nil
}

func (c *Chain) Close() error {
	return nil
}

func scriptKey(script []byte) string {
	return hex.EncodeToString(script)
}
