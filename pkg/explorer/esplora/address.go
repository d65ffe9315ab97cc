package esplora

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/rustaceanrob/coinline/pkg/explorer"
)

// scriptAddress converts an output script to the address esplora indexes it
// by. Only single address standard scripts are supported.
func (e *esplora) scriptAddress(script []byte) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, e.network)
	if err != nil {
		return "", err
	}
	if len(addrs) != 1 {
		return "", fmt.Errorf("script %x is not a single address script", script)
	}
	return addrs[0].EncodeAddress(), nil
}

func (e *esplora) GetHistory(
	ctx context.Context, script []byte,
) ([]explorer.HistoryItem, error) {
	addr, err := e.scriptAddress(script)
	if err != nil {
		return nil, explorer.NewProviderError("get history", hex.EncodeToString(script), err)
	}

	history := make([]explorer.HistoryItem, 0)
	path := fmt.Sprintf("/address/%s/txs", addr)
	for {
		txs, err := e.getAddressTxs(ctx, path)
		if err != nil {
			return nil, explorer.NewProviderError("get history", addr, err)
		}

		confirmed := 0
		var lastConfirmed string
		for _, tx := range txs {
			hash, err := chainhash.NewHashFromStr(tx.TxID)
			if err != nil {
				return nil, explorer.NewProviderError("get history", addr, err)
			}
			history = append(history, explorer.HistoryItem{
				TxID:   *hash,
				Height: tx.Status.height(),
			})
			if tx.Status.Confirmed {
				confirmed++
				lastConfirmed = tx.TxID
			}
		}

		if confirmed < txsPageSize {
			return history, nil
		}
		path = fmt.Sprintf("/address/%s/txs/chain/%s", addr, lastConfirmed)
	}
}

func (e *esplora) getAddressTxs(ctx context.Context, path string) ([]addressTx, error) {
	body, err := e.doGet(ctx, "address_txs", path)
	if err != nil {
		return nil, err
	}
	var txs []addressTx
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode txs: %w", err)
	}
	return txs, nil
}

func (e *esplora) GetBalance(
	ctx context.Context, script []byte,
) (*explorer.Balance, error) {
	addr, err := e.scriptAddress(script)
	if err != nil {
		return nil, explorer.NewProviderError("get balance", hex.EncodeToString(script), err)
	}

	body, err := e.doGet(ctx, "address", fmt.Sprintf("/address/%s", addr))
	if err != nil {
		return nil, explorer.NewProviderError("get balance", addr, err)
	}
	var info addressInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, explorer.NewProviderError(
			"get balance", addr, fmt.Errorf("failed to decode address info: %w", err),
		)
	}
	return info.balance(), nil
}

func (e *esplora) ListUnspent(
	ctx context.Context, script []byte,
) ([]explorer.Unspent, error) {
	addr, err := e.scriptAddress(script)
	if err != nil {
		return nil, explorer.NewProviderError("list unspent", hex.EncodeToString(script), err)
	}

	body, err := e.doGet(ctx, "address_utxo", fmt.Sprintf("/address/%s/utxo", addr))
	if err != nil {
		return nil, explorer.NewProviderError("list unspent", addr, err)
	}
	var utxos []utxo
	if err := json.Unmarshal(body, &utxos); err != nil {
		return nil, explorer.NewProviderError(
			"list unspent", addr, fmt.Errorf("failed to decode utxos: %w", err),
		)
	}

	unspents := make([]explorer.Unspent, 0, len(utxos))
	for _, u := range utxos {
		unspent, err := u.toUnspent()
		if err != nil {
			return nil, explorer.NewProviderError("list unspent", addr, err)
		}
		unspents = append(unspents, unspent)
	}
	return unspents, nil
}
