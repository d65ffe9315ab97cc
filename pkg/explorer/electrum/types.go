package electrum

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	gelectrum "github.com/checksum0/go-electrum/electrum"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/shopspring/decimal"
)

func toHistoryItem(item *gelectrum.GetMempoolResult) (explorer.HistoryItem, error) {
	hash, err := chainhash.NewHashFromStr(item.Hash)
	if err != nil {
		return explorer.HistoryItem{}, err
	}
	return explorer.HistoryItem{
		TxID:   *hash,
		Height: normalizeHeight(int64(item.Height)),
	}, nil
}

// Electrum reports balances in sats, decoded as floats by the client.
func toBalance(b gelectrum.GetBalanceResult) *explorer.Balance {
	return &explorer.Balance{
		Confirmed:   decimal.NewFromFloat(b.Confirmed).Round(0).IntPart(),
		Unconfirmed: decimal.NewFromFloat(b.Unconfirmed).Round(0).IntPart(),
	}
}

func toUnspent(u *gelectrum.ListUnspentResult) (explorer.Unspent, error) {
	hash, err := chainhash.NewHashFromStr(u.Hash)
	if err != nil {
		return explorer.Unspent{}, err
	}
	return explorer.Unspent{
		TxID:   *hash,
		Vout:   u.Position,
		Value:  int64(u.Value),
		Height: normalizeHeight(int64(u.Height)),
	}, nil
}

// Mempool txs are reported with height 0, or -1 when they spend unconfirmed
// parents.
func normalizeHeight(height int64) int64 {
	if height < 0 {
		return 0
	}
	return height
}
