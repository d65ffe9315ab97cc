package application

import (
	"context"
	"fmt"

	"github.com/rustaceanrob/coinline/internal/core/domain"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultGapLimit is the number of consecutive untouched addresses after
	// which a chain is considered exhausted.
	DefaultGapLimit = 20
	// MaxGapLimit ...
	MaxGapLimit = 50
)

// Scanner walks the chains of a master key querying the explorer for every
// derived address until the gap limit is hit.
type Scanner struct {
	master   *wallet.MasterKey
	explorer explorer.Service
	gapLimit uint32
}

// NewScanner ...
func NewScanner(
	master *wallet.MasterKey, explorerSvc explorer.Service, gapLimit uint32,
) (*Scanner, error) {
	if master == nil {
		return nil, ErrNullMasterKey
	}
	if explorerSvc == nil {
		return nil, ErrNullExplorer
	}
	if gapLimit < 1 || gapLimit > MaxGapLimit {
		return nil, ErrInvalidGapLimit
	}
	return &Scanner{master, explorerSvc, gapLimit}, nil
}

type addressState struct {
	history []explorer.HistoryItem
	balance *explorer.Balance
	utxos   []explorer.Unspent
}

// touched returns whether the address has ever been used.
func (p *addressState) touched() bool {
	return len(p.history) > 0 || !p.balance.IsZero() || len(p.utxos) > 0
}

// Scan derives addresses of the given chain from index 0 and accumulates
// their balance, utxos and activity. It stops once more than gapLimit
// consecutive addresses are untouched. The first explorer error aborts the
// scan.
func (s *Scanner) Scan(
	ctx context.Context, chain wallet.ChainKind,
) (*domain.ScanResult, error) {
	result := &domain.ScanResult{
		Chain:    chain,
		Utxos:    make([]wallet.Utxo, 0),
		Activity: make([]domain.AddressActivity, 0),
	}

	unused := uint32(0)
	for index := uint32(0); unused <= s.gapLimit; index++ {
		record, err := s.master.Derive(chain, index)
		if err != nil {
			return nil, err
		}

		p, err := s.query(ctx, record)
		result.Queried++
		if err != nil {
			return nil, fmt.Errorf(
				"scan %s chain at index %d (%s): %w", chain, index, record.Address, err,
			)
		}

		log.WithFields(log.Fields{
			"chain":   chain.String(),
			"index":   index,
			"address": record.Address,
			"txs":     len(p.history),
		}).Debug("scanned address")

		if !p.touched() {
			unused++
			continue
		}
		unused = 0

		result.Balance.Confirmed += p.balance.Confirmed
		result.Balance.Unconfirmed += p.balance.Unconfirmed
		if len(p.history) > 0 {
			result.Activity = append(result.Activity, domain.AddressActivity{
				Record: record,
				Items:  p.history,
			})
		}
		for _, u := range p.utxos {
			result.Utxos = append(result.Utxos, wallet.Utxo{
				TxID:   u.TxID,
				Vout:   u.Vout,
				Value:  u.Value,
				Script: record.Script,
				Height: u.Height,
				Record: record,
			})
		}
	}

	log.WithFields(log.Fields{
		"chain":  chain.String(),
		"queried": result.Queried,
		"utxos":  len(result.Utxos),
	}).Debug("chain scan completed")

	return result, nil
}

func (s *Scanner) query(
	ctx context.Context, record *wallet.AddressRecord,
) (*addressState, error) {
	history, err := s.explorer.GetHistory(ctx, record.Script)
	if err != nil {
		return nil, err
	}
	balance, err := s.explorer.GetBalance(ctx, record.Script)
	if err != nil {
		return nil, err
	}
	utxos, err := s.explorer.ListUnspent(ctx, record.Script)
	if err != nil {
		return nil, err
	}
	return &addressState{history, balance, utxos}, nil
}

// FirstUnused returns the first address of the chain that has no history.
func (s *Scanner) FirstUnused(
	ctx context.Context, chain wallet.ChainKind,
) (*wallet.AddressRecord, error) {
	for index := uint32(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := s.master.Derive(chain, index)
		if err != nil {
			return nil, err
		}
		history, err := s.explorer.GetHistory(ctx, record.Script)
		if err != nil {
			return nil, fmt.Errorf(
				"find unused %s address at index %d (%s): %w",
				chain, index, record.Address, err,
			)
		}
		if len(history) <= 0 {
			return record, nil
		}
	}
}
