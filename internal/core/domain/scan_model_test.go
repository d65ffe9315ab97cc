package domain_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rustaceanrob/coinline/internal/core/domain"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func TestNewAggregate(t *testing.T) {
	t.Parallel()

	receive := &wallet.AddressRecord{Chain: wallet.External, Script: []byte{0x01}}
	change := &wallet.AddressRecord{Chain: wallet.Internal, Script: []byte{0x02}}
	shared := wallet.Utxo{TxID: chainhash.Hash{1}, Vout: 0, Value: 1000, Record: receive}

	external := &domain.ScanResult{
		Chain:   wallet.External,
		Balance: explorer.Balance{Confirmed: 1000, Unconfirmed: 500},
		Utxos:   []wallet.Utxo{shared},
		Activity: []domain.AddressActivity{
			{Record: receive, Items: []explorer.HistoryItem{{TxID: chainhash.Hash{1}, Height: 10}}},
		},
	}
	internal := &domain.ScanResult{
		Chain:   wallet.Internal,
		Balance: explorer.Balance{Confirmed: 2000, Unconfirmed: -700},
		Utxos: []wallet.Utxo{
			shared,
			{TxID: chainhash.Hash{2}, Vout: 1, Value: 2000, Record: change},
		},
		Activity: []domain.AddressActivity{
			{Record: change, Items: []explorer.HistoryItem{{TxID: chainhash.Hash{2}}}},
		},
	}

	agg := domain.NewAggregate(external, internal)

	require.Equal(t, explorer.Balance{Confirmed: 3000, Unconfirmed: -200}, agg.Balance)
	require.Equal(t, int64(2800), agg.Balance.Total())
	require.Len(t, agg.Utxos, 2)
	require.Equal(t, shared.Key(), agg.Utxos[0].Key())
	require.Len(t, agg.Activity, 2)
	require.Equal(t, wallet.External, agg.Activity[0].Record.Chain)
	require.Equal(t, receive, agg.Activity[0].Record)
}

func TestNewAggregateEmpty(t *testing.T) {
	t.Parallel()

	agg := domain.NewAggregate(nil, &domain.ScanResult{Chain: wallet.Internal})
	require.True(t, agg.Balance.IsZero())
	require.Empty(t, agg.Utxos)
	require.Empty(t, agg.Activity)
}
