package domain

import (
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/rustaceanrob/coinline/pkg/wallet"
)

// AddressActivity is the raw provider history of a touched address.
type AddressActivity struct {
	Record *wallet.AddressRecord
	Items  []explorer.HistoryItem
}

// ScanResult is what a gap limited walk of one chain found.
type ScanResult struct {
	Chain    wallet.ChainKind
	Balance  explorer.Balance
	Utxos    []wallet.Utxo
	Activity []AddressActivity
	// Queried is the number of addresses queried, gap included.
	Queried uint32
}

// Aggregate is the wallet wide view made of both chain scans.
type Aggregate struct {
	Balance  explorer.Balance
	Utxos    []wallet.Utxo
	Activity []AddressActivity
}

// NewAggregate merges the external and internal scans. Balances are summed,
// lists are concatenated external first and utxos are deduplicated by
// outpoint.
func NewAggregate(external, internal *ScanResult) *Aggregate {
	agg := &Aggregate{
		Utxos:    make([]wallet.Utxo, 0),
		Activity: make([]AddressActivity, 0),
	}
	seen := make(map[string]struct{})

	for _, scan := range []*ScanResult{external, internal} {
		if scan == nil {
			continue
		}
		agg.Balance.Confirmed += scan.Balance.Confirmed
		agg.Balance.Unconfirmed += scan.Balance.Unconfirmed
		agg.Activity = append(agg.Activity, scan.Activity...)

		for _, u := range scan.Utxos {
			key := u.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			agg.Utxos = append(agg.Utxos, u)
		}
	}
	return agg
}
