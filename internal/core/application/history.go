package application

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rustaceanrob/coinline/internal/core/domain"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/rustaceanrob/coinline/pkg/wallet"
)

// HistoryReconstructor turns the raw activity of the wallet addresses into
// netted received and sent entries.
type HistoryReconstructor struct {
	explorer explorer.Service
}

// NewHistoryReconstructor ...
func NewHistoryReconstructor(explorerSvc explorer.Service) *HistoryReconstructor {
	return &HistoryReconstructor{explorerSvc}
}

// txCache memoizes the txs fetched during one reconstruction.
type txCache struct {
	explorer explorer.Service
	txs      map[chainhash.Hash]*wire.MsgTx
}

func (c *txCache) get(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	if tx, ok := c.txs[txid]; ok {
		return tx, nil
	}
	tx, err := c.explorer.GetTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	c.txs[txid] = tx
	return tx, nil
}

type txFlows struct {
	height   int64
	received int64
	change   int64
	spent    int64
}

// Reconstruct fetches every tx touching the wallet, and the txs funding
// their inputs, to compute per tx:
//   - received: sum of outputs paying receive addresses
//   - change: sum of outputs paying change addresses
//   - spent: sum of wallet owned outputs consumed by the inputs
//
// A tx yields a received entry if it pays any receive address and a sent
// entry if spent exceeds change. Each tx is evaluated once even when it
// touches several wallet addresses. Any explorer error aborts.
func (r *HistoryReconstructor) Reconstruct(
	ctx context.Context, activity []domain.AddressActivity,
) ([]domain.HistoryEntry, error) {
	scripts := make(map[string]*wallet.AddressRecord)
	for _, act := range activity {
		scripts[string(act.Record.Script)] = act.Record
	}

	heights := make(map[chainhash.Hash]int64)
	order := make([]chainhash.Hash, 0)
	for _, act := range activity {
		for _, item := range act.Items {
			height, ok := heights[item.TxID]
			if !ok {
				order = append(order, item.TxID)
			}
			if !ok || item.Height > height {
				heights[item.TxID] = item.Height
			}
		}
	}

	cache := &txCache{r.explorer, make(map[chainhash.Hash]*wire.MsgTx)}
	entries := make([]domain.HistoryEntry, 0, len(order))
	for _, txid := range order {
		flows, err := r.txFlows(ctx, cache, txid, scripts)
		if err != nil {
			return nil, err
		}
		flows.height = heights[txid]
		confirmed := flows.height > 0

		if flows.received > 0 {
			entries = append(entries, domain.HistoryEntry{
				TxID:      txid,
				Value:     flows.received,
				Height:    flows.height,
				Confirmed: confirmed,
				Direction: domain.Received,
			})
		}
		if net := flows.spent - flows.change; net > 0 {
			entries = append(entries, domain.HistoryEntry{
				TxID:      txid,
				Value:     net,
				Height:    flows.height,
				Confirmed: confirmed,
				Direction: domain.Sent,
			})
		}
	}

	domain.SortHistory(entries)
	return entries, nil
}

func (r *HistoryReconstructor) txFlows(
	ctx context.Context, cache *txCache, txid chainhash.Hash,
	scripts map[string]*wallet.AddressRecord,
) (*txFlows, error) {
	tx, err := cache.get(ctx, txid)
	if err != nil {
		return nil, fmt.Errorf("fetch tx %s: %w", txid, err)
	}

	flows := &txFlows{}
	for _, out := range tx.TxOut {
		record, ok := scripts[string(out.PkScript)]
		if !ok {
			continue
		}
		if record.Chain == wallet.External {
			flows.received += out.Value
		} else {
			flows.change += out.Value
		}
	}

	if isCoinbase(tx) {
		return flows, nil
	}
	for _, in := range tx.TxIn {
		prevOut := in.PreviousOutPoint
		prevTx, err := cache.get(ctx, prevOut.Hash)
		if err != nil {
			return nil, fmt.Errorf("fetch prevout %s of tx %s: %w", prevOut, txid, err)
		}
		if int(prevOut.Index) >= len(prevTx.TxOut) {
			return nil, fmt.Errorf(
				"tx %s spends missing output %s: %w", txid, prevOut, explorer.ErrProvider,
			)
		}
		out := prevTx.TxOut[prevOut.Index]
		if _, ok := scripts[string(out.PkScript)]; ok {
			flows.spent += out.Value
		}
	}
	return flows, nil
}

func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prevOut := tx.TxIn[0].PreviousOutPoint
	return prevOut.Index == wire.MaxPrevOutIndex && prevOut.Hash == chainhash.Hash{}
}
