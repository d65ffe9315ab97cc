package esplora

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "bc1qv6uauuvg0em39263xknaqsrqqqk0fh6q4th23a"

var ctx = context.Background()

func testScript(t *testing.T) []byte {
	addr, err := btcutil.DecodeAddress(testAddress, &chaincfg.MainNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

func testTx(t *testing.T) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(50000, testScript(t)))
	return tx
}

func txHex(t *testing.T, tx *wire.MsgTx) string {
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return hex.EncodeToString(buf.Bytes())
}

func newTestService(
	t *testing.T, handler http.HandlerFunc,
) (*esplora, *prometheus.Registry) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceOpts{
		URL:        server.URL + "/",
		Network:    &chaincfg.MainNetParams,
		RateLimit:  1000,
		Registerer: reg,
	})
	require.NoError(t, err)
	return svc.(*esplora), reg
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGetBalance(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/address/"+testAddress, r.URL.Path)
		writeJSON(t, w, map[string]interface{}{
			"address": testAddress,
			"chain_stats": map[string]int64{
				"funded_txo_sum": 100000, "spent_txo_sum": 40000, "tx_count": 3,
			},
			"mempool_stats": map[string]int64{
				"funded_txo_sum": 0, "spent_txo_sum": 5000, "tx_count": 1,
			},
		})
	})

	balance, err := svc.GetBalance(ctx, testScript(t))
	require.NoError(t, err)
	assert.Equal(t, int64(60000), balance.Confirmed)
	assert.Equal(t, int64(-5000), balance.Unconfirmed)
}

func TestGetHistoryPaginates(t *testing.T) {
	txid := func(i int) string { return chainhash.Hash{byte(i), 0xaa}.String() }

	firstPage := []addressTx{
		{TxID: txid(200)},
		{TxID: txid(201)},
	}
	for i := 0; i < txsPageSize; i++ {
		firstPage = append(firstPage, addressTx{
			TxID: txid(i), Status: txStatus{Confirmed: true, BlockHeight: int64(1000 - i)},
		})
	}
	secondPage := []addressTx{
		{TxID: txid(100), Status: txStatus{Confirmed: true, BlockHeight: 500}},
		{TxID: txid(101), Status: txStatus{Confirmed: true, BlockHeight: 400}},
	}

	var calls int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case fmt.Sprintf("/address/%s/txs", testAddress):
			writeJSON(t, w, firstPage)
		case fmt.Sprintf("/address/%s/txs/chain/%s", testAddress, txid(txsPageSize-1)):
			writeJSON(t, w, secondPage)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	history, err := svc.GetHistory(ctx, testScript(t))
	require.NoError(t, err)
	require.Len(t, history, 2+txsPageSize+2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, txid(200), history[0].TxID.String())
	assert.Equal(t, int64(0), history[0].Height)
	assert.Equal(t, int64(1000), history[2].Height)
	assert.Equal(t, txid(101), history[len(history)-1].TxID.String())
	assert.Equal(t, int64(400), history[len(history)-1].Height)
}

func TestListUnspent(t *testing.T) {
	hash := chainhash.Hash{7}
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/address/%s/utxo", testAddress), r.URL.Path)
		writeJSON(t, w, []utxo{
			{TxID: hash.String(), Vout: 1, Value: 50000, Status: txStatus{Confirmed: true, BlockHeight: 800000}},
			{TxID: hash.String(), Vout: 3, Value: 1200},
		})
	})

	unspents, err := svc.ListUnspent(ctx, testScript(t))
	require.NoError(t, err)
	require.Len(t, unspents, 2)
	assert.Equal(t, explorer.Unspent{TxID: hash, Vout: 1, Value: 50000, Height: 800000}, unspents[0])
	assert.Equal(t, explorer.Unspent{TxID: hash, Vout: 3, Value: 1200, Height: 0}, unspents[1])
}

func TestGetTransaction(t *testing.T) {
	tx := testTx(t)
	other := wire.NewMsgTx(1)
	other.AddTxOut(wire.NewTxOut(1, testScript(t)))

	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case fmt.Sprintf("/tx/%s/hex", tx.TxHash()):
			_, _ = io.WriteString(w, txHex(t, tx))
		case fmt.Sprintf("/tx/%s/hex", chainhash.Hash{0xee}):
			_, _ = io.WriteString(w, txHex(t, other))
		default:
			http.Error(w, "Transaction not found", http.StatusNotFound)
		}
	})

	got, err := svc.GetTransaction(ctx, tx.TxHash())
	require.NoError(t, err)
	assert.Equal(t, tx.TxHash(), got.TxHash())
	require.Len(t, got.TxOut, 1)
	assert.Equal(t, int64(50000), got.TxOut[0].Value)

	_, err = svc.GetTransaction(ctx, chainhash.Hash{0xee})
	require.ErrorIs(t, err, explorer.ErrProvider)

	_, err = svc.GetTransaction(ctx, chainhash.Hash{0xff})
	require.ErrorIs(t, err, explorer.ErrProvider)
	assert.Contains(t, err.Error(), "404")
}

func TestBroadcast(t *testing.T) {
	tx := testTx(t)
	svc, reg := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tx", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if string(body) != txHex(t, tx) {
			http.Error(w, "sendrawtransaction RPC error: bad-txns-inputs-missingorspent", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, tx.TxHash().String())
	})

	txid, err := svc.Broadcast(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.TxHash(), *txid)

	other := testTx(t)
	other.LockTime = 10
	_, err = svc.Broadcast(ctx, other)
	require.ErrorIs(t, err, explorer.ErrProvider)
	assert.Contains(t, err.Error(), "missingorspent")

	assert.Equal(t, float64(1), testutil.ToFloat64(
		svc.metrics.requests.WithLabelValues("broadcast", outcomeSuccess),
	))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		svc.metrics.requests.WithLabelValues("broadcast", outcomeRejected),
	))
	count, err := testutil.GatherAndCount(reg, "coinline_esplora_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEstimateFeeRate(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fee-estimates", r.URL.Path)
		_, _ = io.WriteString(w, `{"1": 20.5, "6": 10.1, "144": 1.004}`)
	})

	tests := []struct {
		blocks   int
		expected string
	}{
		{1, "20.5"},
		{3, "20.5"},
		{6, "10.1"},
		{1008, "1.004"},
	}
	for _, tt := range tests {
		rate, err := svc.EstimateFeeRate(ctx, tt.blocks)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, rate.String())
	}

	_, err := svc.EstimateFeeRate(ctx, 0)
	require.ErrorIs(t, err, explorer.ErrProvider)
	require.ErrorIs(t, err, explorer.ErrInvalidConfTarget)
}

func TestEstimateFeeRates(t *testing.T) {
	var calls int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/fee-estimates", r.URL.Path)
		_, _ = io.WriteString(w, `{"1": 20.5, "6": 10.1, "144": 1.004}`)
	})

	var estimator explorer.FeeEstimator = svc
	rates, err := estimator.EstimateFeeRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, "20.5", rates[1].String())
	assert.Equal(t, "10.1", rates[6].String())
	assert.Equal(t, "1.004", rates[144].String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	empty, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err = empty.EstimateFeeRates(ctx)
	require.ErrorIs(t, err, explorer.ErrProvider)
	require.ErrorIs(t, err, explorer.ErrNoFeeEstimates)
}

func TestServerErrorsAreProviderErrors(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	})
	script := testScript(t)

	_, err := svc.GetBalance(ctx, script)
	require.ErrorIs(t, err, explorer.ErrProvider)
	_, err = svc.GetHistory(ctx, script)
	require.ErrorIs(t, err, explorer.ErrProvider)
	_, err = svc.ListUnspent(ctx, script)
	require.ErrorIs(t, err, explorer.ErrProvider)

	var perr *explorer.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "list unspent", perr.Op)
	assert.Equal(t, testAddress, perr.Subject)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		svc.metrics.requests.WithLabelValues("address_utxo", outcomeFailure),
	))
}

func TestUnsupportedScript(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	opReturn := []byte{txscript.OP_RETURN, 0x01, 0x00}

	_, err := svc.GetHistory(ctx, opReturn)
	require.ErrorIs(t, err, explorer.ErrProvider)
	_, err = svc.GetBalance(ctx, opReturn)
	require.ErrorIs(t, err, explorer.ErrProvider)
}

func TestNewServiceFails(t *testing.T) {
	tests := []struct {
		name string
		opts ServiceOpts
		err  error
	}{
		{"nil network", ServiceOpts{URL: "https://blockstream.info/api"}, ErrNullNetwork},
		{"bad scheme", ServiceOpts{URL: "ssl://electrum.blockstream.info:50002", Network: &chaincfg.MainNetParams}, ErrInvalidURL},
		{"no host", ServiceOpts{URL: "https://", Network: &chaincfg.MainNetParams}, ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.opts)
			require.ErrorIs(t, err, tt.err)
			require.Nil(t, svc)
		})
	}

	_, err := NewService(ServiceOpts{
		URL: "https://blockstream.info/api", Network: &chaincfg.MainNetParams, RateLimit: -1,
	})
	require.Error(t, err)
}

func TestMetricsRegistrationIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := ServiceOpts{
		URL: "https://blockstream.info/api", Network: &chaincfg.MainNetParams, Registerer: reg,
	}
	_, err := NewService(opts)
	require.NoError(t, err)
	_, err = NewService(opts)
	require.NoError(t, err)
}
