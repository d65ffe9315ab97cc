package main

import (
	"sort"

	"github.com/rustaceanrob/coinline/internal/core/application"
	"github.com/rustaceanrob/coinline/internal/core/domain"
	"github.com/rustaceanrob/coinline/pkg/mathutil"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/shopspring/decimal"
)

type balanceView struct {
	Confirmed   int64  `json:"confirmed"`
	Unconfirmed int64  `json:"unconfirmed"`
	Total       int64  `json:"total"`
	TotalBtc    string `json:"total_btc"`
}

func newBalanceView(b *application.BalanceInfo) balanceView {
	return balanceView{
		Confirmed:   b.Confirmed,
		Unconfirmed: b.Unconfirmed,
		Total:       b.Total(),
		TotalBtc:    mathutil.BtcFromSats(b.Total()).StringFixed(8),
	}
}

type addressView struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
	Index   uint32 `json:"index"`
	Path    string `json:"derivation_path"`
}

func newAddressView(r *wallet.AddressRecord) addressView {
	return addressView{
		Address: r.Address,
		Chain:   r.Chain.String(),
		Index:   r.Index,
		Path:    r.Path.String(),
	}
}

type historyView struct {
	TxID      string `json:"txid"`
	Direction string `json:"direction"`
	Value     int64  `json:"value"`
	Height    int64  `json:"height"`
	Confirmed bool   `json:"confirmed"`
}

func newHistoryViews(entries []domain.HistoryEntry) []historyView {
	views := make([]historyView, 0, len(entries))
	for _, e := range entries {
		views = append(views, historyView{
			TxID:      e.TxID.String(),
			Direction: e.Direction.String(),
			Value:     e.Value,
			Height:    e.Height,
			Confirmed: e.Confirmed,
		})
	}
	return views
}

type utxoView struct {
	TxID      string `json:"txid"`
	Vout      uint32 `json:"vout"`
	Value     int64  `json:"value"`
	Address   string `json:"address"`
	Path      string `json:"derivation_path"`
	Height    int64  `json:"height"`
	Confirmed bool   `json:"confirmed"`
}

func newUtxoViews(utxos []wallet.Utxo) []utxoView {
	views := make([]utxoView, 0, len(utxos))
	for _, u := range utxos {
		v := utxoView{
			TxID:      u.TxID.String(),
			Vout:      u.Vout,
			Value:     u.Value,
			Height:    u.Height,
			Confirmed: u.Confirmed(),
		}
		if u.Record != nil {
			v.Address = u.Record.Address
			v.Path = u.Record.Path.String()
		}
		views = append(views, v)
	}
	return views
}

type feeView struct {
	Blocks       int    `json:"blocks"`
	SatsPerVbyte string `json:"sats_per_vbyte"`
}

func newFeeViews(estimates map[int]decimal.Decimal) []feeView {
	views := make([]feeView, 0, len(estimates))
	for blocks, rate := range estimates {
		views = append(views, feeView{blocks, rate.Round(2).String()})
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Blocks < views[j].Blocks
	})
	return views
}

type planView struct {
	ID        string `json:"id"`
	Psbt      string `json:"psbt,omitempty"`
	PsbtFile  string `json:"psbt_file,omitempty"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	Fee       int64  `json:"fee"`
	Change    int64  `json:"change"`
	ChangeTo  string `json:"change_address"`
	Inputs    int    `json:"inputs"`
}

func newPlanView(plan *wallet.UnsignedTxPlan) planView {
	return planView{
		ID:        plan.ID.String(),
		Recipient: plan.Recipient,
		Amount:    plan.Selection.Target,
		Fee:       plan.Fee(),
		Change:    plan.Selection.Change,
		ChangeTo:  plan.Change.Address,
		Inputs:    len(plan.Selection.Selected),
	}
}
