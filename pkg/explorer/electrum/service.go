package electrum

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	gelectrum "github.com/checksum0/go-electrum/electrum"
	"github.com/rustaceanrob/coinline/pkg/circuitbreaker"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/rustaceanrob/coinline/pkg/mathutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	// DefaultRequestTimeout ...
	DefaultRequestTimeout = 30 * time.Second
)

var (
	// ErrInvalidURL ...
	ErrInvalidURL = errors.New("electrum url must be in the form tcp://host:port or ssl://host:port")
	// ErrFeeUnavailable is returned when the server has not enough data to
	// estimate a fee rate.
	ErrFeeUnavailable = errors.New("fee estimate not available")
)

// ServiceOpts is the struct given to the NewService method
type ServiceOpts struct {
	URL            string
	RequestTimeout time.Duration
	// RateLimit is the max number of requests per second, 0 means unlimited.
	RateLimit int
	// TLSConfig overrides the default config used for ssl:// urls.
	TLSConfig *tls.Config
}

func (o ServiceOpts) validate() error {
	if o.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	_, _, err := parseURL(o.URL)
	return err
}

func parseURL(rawURL string) (scheme, host string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || u.Port() == "" {
		return "", "", ErrInvalidURL
	}
	if u.Scheme != "tcp" && u.Scheme != "ssl" {
		return "", "", ErrInvalidURL
	}
	return u.Scheme, u.Host, nil
}

type dialFunc func(ctx context.Context) (*gelectrum.Client, error)

// connError marks failures of the connection itself, as opposed to the
// server refusing a request. Only these count against the circuit breaker
// and cause a redial.
type connError struct {
	err error
}

func (e *connError) Error() string { return e.err.Error() }
func (e *connError) Unwrap() error { return e.err }

type electrum struct {
	dial    dialFunc
	timeout time.Duration
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker

	lock   sync.Mutex
	client *gelectrum.Client
	quit   chan struct{}
}

// NewService returns a new electrum service as an explorer.Service interface.
// The connection is opened lazily by the first request.
func NewService(opts ServiceOpts) (explorer.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	scheme, host, _ := parseURL(opts.URL)
	dial := func(ctx context.Context) (*gelectrum.Client, error) {
		return gelectrum.NewClientTCP(ctx, host)
	}
	if scheme == "ssl" {
		cfg := opts.TLSConfig
		if cfg == nil {
			u, _ := url.Parse(opts.URL)
			cfg = &tls.Config{ServerName: u.Hostname()}
		}
		dial = func(ctx context.Context) (*gelectrum.Client, error) {
			return gelectrum.NewClientSSL(ctx, host, cfg)
		}
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RateLimit > 0 {
		limiter = ratelimit.New(opts.RateLimit)
	}

	return &electrum{
		dial:    dial,
		timeout: timeout,
		limiter: limiter,
		breaker: circuitbreaker.NewCircuitBreaker("electrum", func(err error) bool {
			var cerr *connError
			return err == nil || !errors.As(err, &cerr)
		}),
	}, nil
}

func (e *electrum) Close() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.resetLocked()
	return nil
}

// connect returns the current client, dialing a new one and running the
// version handshake if there is none or the previous one shut down.
func (e *electrum) connect(ctx context.Context) (*gelectrum.Client, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.client != nil && !e.client.IsShutdown() {
		return e.client, nil
	}
	e.resetLocked()

	client, err := e.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	quit := make(chan struct{})
	go drainErrors(client, quit)

	if _, _, err := client.ServerVersion(ctx); err != nil {
		close(quit)
		client.Shutdown()
		return nil, fmt.Errorf("version handshake failed: %w", err)
	}

	e.client = client
	e.quit = quit
	return client, nil
}

// drainErrors consumes the transport errors the client reports, which it
// would otherwise block on before shutting itself down.
func drainErrors(client *gelectrum.Client, quit chan struct{}) {
	for {
		select {
		case err := <-client.Error:
			log.WithError(err).Debug("electrum connection error")
		case <-quit:
			return
		}
	}
}

func (e *electrum) reset(client *gelectrum.Client) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.client == client {
		e.resetLocked()
	}
}

func (e *electrum) resetLocked() {
	if e.client == nil {
		return
	}
	if !e.client.IsShutdown() {
		e.client.Shutdown()
	}
	close(e.quit)
	e.client = nil
	e.quit = nil
}

func (e *electrum) call(
	ctx context.Context, fn func(ctx context.Context, c *gelectrum.Client) error,
) error {
	e.limiter.Take()
	_, err := e.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		client, err := e.connect(ctx)
		if err != nil {
			return nil, &connError{err}
		}
		if err := fn(ctx, client); err != nil {
			if client.IsShutdown() || ctx.Err() != nil {
				e.reset(client)
				return nil, &connError{err}
			}
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (e *electrum) GetHistory(
	ctx context.Context, script []byte,
) ([]explorer.HistoryItem, error) {
	sh := ScriptHash(script)
	var items []*gelectrum.GetMempoolResult
	if err := e.call(ctx, func(ctx context.Context, c *gelectrum.Client) (err error) {
		items, err = c.GetHistory(ctx, sh)
		return
	}); err != nil {
		return nil, explorer.NewProviderError("get history", sh, err)
	}

	history := make([]explorer.HistoryItem, 0, len(items))
	for _, item := range items {
		h, err := toHistoryItem(item)
		if err != nil {
			return nil, explorer.NewProviderError("get history", sh, err)
		}
		history = append(history, h)
	}
	return history, nil
}

func (e *electrum) GetBalance(
	ctx context.Context, script []byte,
) (*explorer.Balance, error) {
	sh := ScriptHash(script)
	var b gelectrum.GetBalanceResult
	if err := e.call(ctx, func(ctx context.Context, c *gelectrum.Client) (err error) {
		b, err = c.GetBalance(ctx, sh)
		return
	}); err != nil {
		return nil, explorer.NewProviderError("get balance", sh, err)
	}
	return toBalance(b), nil
}

func (e *electrum) ListUnspent(
	ctx context.Context, script []byte,
) ([]explorer.Unspent, error) {
	sh := ScriptHash(script)
	var utxos []*gelectrum.ListUnspentResult
	if err := e.call(ctx, func(ctx context.Context, c *gelectrum.Client) (err error) {
		utxos, err = c.ListUnspent(ctx, sh)
		return
	}); err != nil {
		return nil, explorer.NewProviderError("list unspent", sh, err)
	}

	unspents := make([]explorer.Unspent, 0, len(utxos))
	for _, u := range utxos {
		unspent, err := toUnspent(u)
		if err != nil {
			return nil, explorer.NewProviderError("list unspent", sh, err)
		}
		unspents = append(unspents, unspent)
	}
	return unspents, nil
}

func (e *electrum) GetTransaction(
	ctx context.Context, txid chainhash.Hash,
) (*wire.MsgTx, error) {
	var txHex string
	if err := e.call(ctx, func(ctx context.Context, c *gelectrum.Client) (err error) {
		txHex, err = c.GetRawTransaction(ctx, txid.String())
		return
	}); err != nil {
		return nil, explorer.NewProviderError("get transaction", txid.String(), err)
	}

	raw, err := hex.DecodeString(txHex)
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

func (e *electrum) EstimateFeeRate(
	ctx context.Context, blocks int,
) (decimal.Decimal, error) {
	if blocks < explorer.MinConfTarget {
		return decimal.Zero, explorer.NewProviderError(
			"estimate fee", strconv.Itoa(blocks), explorer.ErrInvalidConfTarget,
		)
	}

	var fee float32
	if err := e.call(ctx, func(ctx context.Context, c *gelectrum.Client) (err error) {
		fee, err = c.GetFee(ctx, uint32(blocks))
		return
	}); err != nil {
		return decimal.Zero, explorer.NewProviderError("estimate fee", strconv.Itoa(blocks), err)
	}
	btcPerKvb := decimal.NewFromFloat32(fee)
	if !btcPerKvb.IsPositive() {
		return decimal.Zero, explorer.NewProviderError(
			"estimate fee", strconv.Itoa(blocks), ErrFeeUnavailable,
		)
	}
	return mathutil.SatsPerVbyteFromBtcPerKvb(btcPerKvb), nil
}

func (e *electrum) Broadcast(
	ctx context.Context, tx *wire.MsgTx,
) (*chainhash.Hash, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, explorer.NewProviderError("broadcast", "", err)
	}
	txid := tx.TxHash()

	var res string
	if err := e.call(ctx, func(ctx context.Context, c *gelectrum.Client) (err error) {
		res, err = c.BroadcastTransaction(ctx, hex.EncodeToString(buf.Bytes()))
		return
	}); err != nil {
		return nil, explorer.NewProviderError("broadcast", txid.String(), err)
	}

	hash, err := chainhash.NewHashFromStr(res)
	if err != nil {
		return nil, explorer.NewProviderError("broadcast", txid.String(), err)
	}
	return hash, nil
}
