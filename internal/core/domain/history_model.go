package domain

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Direction tells whether a history entry moved funds in or out of the wallet.
type Direction int

const (
	// Received funds paid to receive addresses.
	Received Direction = iota
	// Sent funds that left the wallet, change excluded.
	Sent
)

func (d Direction) String() string {
	switch d {
	case Received:
		return "received"
	case Sent:
		return "sent"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// HistoryEntry is one netted movement of a wallet transaction. A tx yields at
// most one entry per direction.
type HistoryEntry struct {
	TxID      chainhash.Hash
	Value     int64
	Height    int64
	Confirmed bool
	Direction Direction
}

// less orders mempool entries first, then confirmed ones from the most recent
// block, then by txid and direction so that no two entries compare equal.
func (h HistoryEntry) less(other HistoryEntry) bool {
	if h.Confirmed != other.Confirmed {
		return !h.Confirmed
	}
	if h.Height != other.Height {
		return h.Height > other.Height
	}
	if c := bytes.Compare(h.TxID[:], other.TxID[:]); c != 0 {
		return c < 0
	}
	return h.Direction < other.Direction
}

// SortHistory sorts entries in place in display order.
func SortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].less(entries[j])
	})
}
