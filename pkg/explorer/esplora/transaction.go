package esplora

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/shopspring/decimal"
)

func (e *esplora) GetTransaction(
	ctx context.Context, txid chainhash.Hash,
) (*wire.MsgTx, error) {
	body, err := e.doGet(ctx, "tx_hex", fmt.Sprintf("/tx/%s/hex", txid))
	if err != nil {
		return nil, explorer.NewProviderError("get transaction", txid.String(), err)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, explorer.NewProviderError(
			"get transaction", txid.String(), fmt.Errorf("failed to decode hex: %w", err),
		)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, explorer.NewProviderError(
			"get transaction", txid.String(), fmt.Errorf("failed to deserialize tx: %w", err),
		)
	}
	if tx.TxHash() != txid {
		return nil, explorer.NewProviderError(
			"get transaction", txid.String(),
			fmt.Errorf("provider returned tx %s", tx.TxHash()),
		)
	}
	return tx, nil
}

func (e *esplora) Broadcast(
	ctx context.Context, tx *wire.MsgTx,
) (*chainhash.Hash, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, explorer.NewProviderError("broadcast", "", err)
	}
	txHex := hex.EncodeToString(buf.Bytes())
	txid := tx.TxHash()

	body, err := e.doRequest(ctx, "broadcast", http.MethodPost, "/tx", []byte(txHex))
	if err != nil {
		return nil, explorer.NewProviderError("broadcast", txid.String(), err)
	}

	hash, err := chainhash.NewHashFromStr(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, explorer.NewProviderError("broadcast", txid.String(), err)
	}
	return hash, nil
}

func (e *esplora) EstimateFeeRate(
	ctx context.Context, blocks int,
) (decimal.Decimal, error) {
	estimates, err := e.feeEstimates(ctx)
	if err != nil {
		return decimal.Zero, explorer.NewProviderError("estimate fee", "", err)
	}
	rate, err := explorer.PickFeeRate(estimates, blocks)
	if err != nil {
		return decimal.Zero, explorer.NewProviderError(
			"estimate fee", strconv.Itoa(blocks), err,
		)
	}
	return rate, nil
}

func (e *esplora) EstimateFeeRates(
	ctx context.Context,
) (map[int]decimal.Decimal, error) {
	estimates, err := e.feeEstimates(ctx)
	if err != nil {
		return nil, explorer.NewProviderError("estimate fees", "", err)
	}
	if len(estimates) == 0 {
		return nil, explorer.NewProviderError("estimate fees", "", explorer.ErrNoFeeEstimates)
	}
	return estimates, nil
}

func (e *esplora) feeEstimates(ctx context.Context) (map[int]decimal.Decimal, error) {
	body, err := e.doGet(ctx, "fee_estimates", "/fee-estimates")
	if err != nil {
		return nil, err
	}
	var raw feeEstimates
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode fee estimates: %w", err)
	}

	estimates := make(map[int]decimal.Decimal, len(raw))
	for target, rate := range raw {
		blocks, err := strconv.Atoi(target)
		if err != nil {
			return nil, fmt.Errorf("invalid fee estimate target %q", target)
		}
		estimates[blocks] = decimal.NewFromFloat(rate)
	}
	return estimates, nil
}
