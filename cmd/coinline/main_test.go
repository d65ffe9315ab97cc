package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/rustaceanrob/coinline/pkg/explorer/explorertest"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/rustaceanrob/coinline/pkg/wallet/wallettest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testXpub  = "zpub6qVc2FELq8mG3pf2eayaVtFtG3ots5wT9G82V8tSWUcXM54dZSgLvz23vEkqqQyB2rxNum7W94dLG7qUEE1RDNuKhgRi9EXhXZ6E6zxx7Kx"
	recipient = "bc1qv6uauuvg0em39263xknaqsrqqqk0fh6q4th23a"
)

// newEsploraServer exposes the given chain through the subset of the
// esplora REST API used by the wallet.
func newEsploraServer(t *testing.T, chain *explorertest.Chain) *httptest.Server {
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(v))
	}
	status := func(height int64) map[string]interface{} {
		if height <= 0 {
			return map[string]interface{}{"confirmed": false}
		}
		return map[string]interface{}{"confirmed": true, "block_height": height}
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/tx":
			body, _ := io.ReadAll(r.Body)
			raw, err := hex.DecodeString(string(body))
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			tx := wire.NewMsgTx(2)
			if !assert.NoError(t, tx.Deserialize(bytes.NewReader(raw))) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			txid, err := chain.Broadcast(ctx, tx)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, txid.String())

		case r.URL.Path == "/fee-estimates":
			writeJSON(w, map[string]float64{"1": 5, "6": 2, "25": 1})

		case len(parts) == 3 && parts[0] == "tx" && parts[2] == "hex":
			hash, err := chainhash.NewHashFromStr(parts[1])
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			tx, err := chain.GetTransaction(ctx, *hash)
			if err != nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var buf bytes.Buffer
			assert.NoError(t, tx.Serialize(&buf))
			fmt.Fprint(w, hex.EncodeToString(buf.Bytes()))

		case len(parts) >= 2 && parts[0] == "address":
			addr, err := btcutil.DecodeAddress(parts[1], &chaincfg.MainNetParams)
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			script, err := txscript.PayToAddrScript(addr)
			assert.NoError(t, err)

			switch {
			case len(parts) == 2:
				balance, err := chain.GetBalance(ctx, script)
				assert.NoError(t, err)
				writeJSON(w, map[string]interface{}{
					"address":       parts[1],
					"chain_stats":   map[string]int64{"funded_txo_sum": balance.Confirmed},
					"mempool_stats": map[string]int64{"funded_txo_sum": balance.Unconfirmed},
				})
			case parts[2] == "txs":
				history, err := chain.GetHistory(ctx, script)
				assert.NoError(t, err)
				txs := make([]map[string]interface{}, 0)
				for _, h := range history {
					txs = append(txs, map[string]interface{}{
						"txid": h.TxID.String(), "status": status(h.Height),
					})
				}
				writeJSON(w, txs)
			case parts[2] == "utxo":
				unspents, err := chain.ListUnspent(ctx, script)
				assert.NoError(t, err)
				utxos := make([]map[string]interface{}, 0)
				for _, u := range unspents {
					utxos = append(utxos, map[string]interface{}{
						"txid": u.TxID.String(), "vout": u.Vout, "value": u.Value,
						"status": status(u.Height),
					})
				}
				writeJSON(w, utxos)
			default:
				w.WriteHeader(http.StatusNotFound)
			}

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

// runCLICommand runs the app with the given args. Flags override the config
// process wide, so every run passes the network and gap limit explicitly.
func runCLICommand(t *testing.T, args ...string) (string, error) {
	args = append([]string{"--network", "mainnet", "--gap", "20"}, args...)
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"coinline"}, args...))
	return out.String(), err
}

func TestAddressesCommand(t *testing.T) {
	datadir := t.TempDir()

	out, err := runCLICommand(t,
		"--xpub", testXpub, "--datadir", datadir,
		"--provider", "https://blockstream.info/api",
		"addresses", "--count", "11",
	)
	require.NoError(t, err)

	var views []addressView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 11)
	require.Equal(t, "bc1qv6uauuvg0em39263xknaqsrqqqk0fh6q4th23a", views[2].Address)
	require.Equal(t, "m/84'/0'/0'/0/2", views[2].Path)
	require.Equal(t, "bc1qfh4ltu8ysfl9xq0ld88h88qja7sad283akey6w", views[10].Address)
}

func TestConfigCommand(t *testing.T) {
	datadir := t.TempDir()

	out, err := runCLICommand(t,
		"--xpub", testXpub, "--datadir", datadir, "--gap", "7",
		"--provider", "ssl://electrum.blockstream.info:50002",
		"config",
	)
	require.NoError(t, err)

	var settings map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	require.Equal(t, testXpub, settings["XPUB"])
	require.Equal(t, float64(7), settings["GAP_LIMIT"])
	require.Equal(t, "ssl://electrum.blockstream.info:50002", settings["PROVIDER_URL"])
}

func TestInvalidGlobalFlags(t *testing.T) {
	_, err := runCLICommand(t, "--datadir", t.TempDir(), "--gap", "51", "config")
	require.Error(t, err)
}

func TestSendAndBroadcast(t *testing.T) {
	t.Setenv("COINLINE_PROVIDER_RATE_LIMIT", "0")

	account, err := wallettest.NewAccount(bytes.Repeat([]byte{0x07}, 32), &chaincfg.MainNetParams)
	require.NoError(t, err)
	master, err := account.MasterKey()
	require.NoError(t, err)
	receive, err := master.Derive(wallet.External, 0)
	require.NoError(t, err)

	chain := explorertest.NewChain()
	chain.SetFeeRates(map[int]decimal.Decimal{1: decimal.NewFromInt(1)})
	funding := wire.NewMsgTx(2)
	funding.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), []byte{0x01, 0x01}, nil,
	))
	funding.AddTxOut(wire.NewTxOut(50000, receive.Script))
	chain.AddTx(funding, 100)

	server := newEsploraServer(t, chain)
	datadir := t.TempDir()
	globals := []string{
		"--xpub", account.Xpub,
		"--fingerprint", account.Fingerprint.String(),
		"--provider", server.URL,
		"--datadir", datadir,
		"--gap", "3",
	}
	run := func(args ...string) string {
		out, err := runCLICommand(t, append(append([]string{}, globals...), args...)...)
		require.NoError(t, err)
		return out
	}

	var bal balanceView
	require.NoError(t, json.Unmarshal([]byte(run("balance")), &bal))
	require.Equal(t, int64(50000), bal.Total)
	require.Equal(t, "0.00050000", bal.TotalBtc)

	unsignedPath := filepath.Join(datadir, "unsigned.psbt")
	var plan planView
	require.NoError(t, json.Unmarshal([]byte(run(
		"send", "--to", recipient, "--amount", "40000", "--blocks", "25",
		"--out", unsignedPath,
	)), &plan))
	require.Equal(t, int64(40000), plan.Amount)
	require.Equal(t, int64(124), plan.Fee)
	require.Equal(t, int64(9876), plan.Change)
	require.Equal(t, unsignedPath, plan.PsbtFile)

	raw, err := os.ReadFile(unsignedPath)
	require.NoError(t, err)
	packet, err := wallet.DecodePsbt(raw)
	require.NoError(t, err)
	require.NoError(t, account.SignPsbt(packet))
	signed, err := packet.B64Encode()
	require.NoError(t, err)
	signedPath := filepath.Join(datadir, "signed.psbt")
	require.NoError(t, os.WriteFile(signedPath, []byte(signed), 0644))

	var resp map[string]string
	require.NoError(t, json.Unmarshal([]byte(run("broadcast", "--psbt", signedPath)), &resp))
	require.Equal(t, packet.UnsignedTx.TxHash().String(), resp["txid"])
	require.Len(t, chain.Broadcasted(), 1)

	var entries []historyView
	require.NoError(t, json.Unmarshal([]byte(run("--metrics", "history")), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, resp["txid"], entries[0].TxID)
	require.Equal(t, "sent", entries[0].Direction)
	require.Equal(t, int64(40124), entries[0].Value)
	require.False(t, entries[0].Confirmed)
}

func TestSendInvalidUsage(t *testing.T) {
	_, err := runCLICommand(t,
		"--xpub", testXpub, "--fingerprint", "00000000", "--datadir", t.TempDir(),
		"--provider", "https://blockstream.info/api",
		"send", "--to", recipient,
	)
	var usageErr *invalidUsageError
	require.ErrorAs(t, err, &usageErr)
}
