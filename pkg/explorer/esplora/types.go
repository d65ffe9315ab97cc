package esplora

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rustaceanrob/coinline/pkg/explorer"
)

// txsPageSize is the number of confirmed txs returned by the address txs
// endpoints per page.
const txsPageSize = 25

type txStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height,omitempty"`
}

func (s txStatus) height() int64 {
	if !s.Confirmed {
		return 0
	}
	return s.BlockHeight
}

type addressTx struct {
	TxID   string   `json:"txid"`
	Status txStatus `json:"status"`
}

type addressStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
	TxCount      int64 `json:"tx_count"`
}

type addressInfo struct {
	Address      string       `json:"address"`
	ChainStats   addressStats `json:"chain_stats"`
	MempoolStats addressStats `json:"mempool_stats"`
}

func (a addressInfo) balance() *explorer.Balance {
	return &explorer.Balance{
		Confirmed:   a.ChainStats.FundedTxoSum - a.ChainStats.SpentTxoSum,
		Unconfirmed: a.MempoolStats.FundedTxoSum - a.MempoolStats.SpentTxoSum,
	}
}

type utxo struct {
	TxID   string   `json:"txid"`
	Vout   uint32   `json:"vout"`
	Value  int64    `json:"value"`
	Status txStatus `json:"status"`
}

func (u utxo) toUnspent() (explorer.Unspent, error) {
	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return explorer.Unspent{}, err
	}
	return explorer.Unspent{
		TxID:   *hash,
		Vout:   u.Vout,
		Value:  u.Value,
		Height: u.Status.height(),
	}, nil
}

type feeEstimates map[string]float64
