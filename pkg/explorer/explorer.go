package explorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
)

// ErrProvider is matched by every error returned by a Service implementation.
var ErrProvider = errors.New("provider error")

// ProviderError carries the failing operation and its subject (script,
// address or txid) along with the underlying cause.
type ProviderError struct {
	Op      string
	Subject string
	Err     error
}

// NewProviderError ...
func NewProviderError(op, subject string, err error) *ProviderError {
	return &ProviderError{Op: op, Subject: subject, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %s: %v", ErrProvider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrProvider, e.Op, e.Subject, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes every ProviderError match ErrProvider.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// HistoryItem is a transaction touching a script. Height is 0 for
// transactions still in mempool.
type HistoryItem struct {
	TxID   chainhash.Hash
	Height int64
}

// Balance of a script in satoshis. Unconfirmed is the mempool delta and may
// be negative.
type Balance struct {
	Confirmed   int64
	Unconfirmed int64
}

// Total ...
func (b Balance) Total() int64 {
	return b.Confirmed + b.Unconfirmed
}

// IsZero ...
func (b Balance) IsZero() bool {
	return b.Confirmed == 0 && b.Unconfirmed == 0
}

// Unspent is an output locked by a script, as reported by the provider.
type Unspent struct {
	TxID   chainhash.Hash
	Vout   uint32
	Value  int64
	Height int64
}

// Service is representation of a remote chain data source that allows to
// fetch the data of single scripts and to broadcast transactions. Every
// method fails with an error matching ErrProvider. Implementations must be
// safe for concurrent use.
type Service interface {
	// GetHistory returns the confirmed and mempool transactions that touch
	// the given output script.
	GetHistory(ctx context.Context, script []byte) ([]HistoryItem, error)
	// GetBalance returns the confirmed and unconfirmed balance of the script.
	GetBalance(ctx context.Context, script []byte) (*Balance, error)
	// ListUnspent returns the unspent outputs locked by the script.
	ListUnspent(ctx context.Context, script []byte) ([]Unspent, error)
	// GetTransaction fetches the transaction identified by its hash.
	GetTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)
	// EstimateFeeRate returns the fee rate in sat/vB expected to confirm a tx
	// within the given number of blocks.
	EstimateFeeRate(ctx context.Context, blocks int) (decimal.Decimal, error)
	// Broadcast attempts to add the given tx to the mempool and returns its
	// hash.
	Broadcast(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error)
	// Close releases any connection held by the service.
	Close() error
}
