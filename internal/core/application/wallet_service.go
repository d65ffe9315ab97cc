package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rustaceanrob/coinline/internal/core/domain"
	"github.com/rustaceanrob/coinline/internal/core/ports"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// WalletService exposes the operations of a watch-only wallet whose state is
// entirely rebuilt from the explorer at every call.
type WalletService interface {
	GetBalance(ctx context.Context) (*BalanceInfo, error)
	GetFreshAddress(ctx context.Context) (*wallet.AddressRecord, error)
	GetFreshChangeAddress(ctx context.Context) (*wallet.AddressRecord, error)
	ListAddresses(
		ctx context.Context, chain wallet.ChainKind, count uint32,
	) ([]*wallet.AddressRecord, error)
	GetHistory(ctx context.Context) ([]domain.HistoryEntry, error)
	GetUtxos(ctx context.Context) ([]wallet.Utxo, error)
	ListDust(ctx context.Context, threshold int64) ([]wallet.Utxo, error)
	GetFeeEstimates(ctx context.Context) (map[int]decimal.Decimal, error)
	PrepareSend(
		ctx context.Context, req SendRequest,
	) (*wallet.UnsignedTxPlan, error)
	SignAndBroadcast(
		ctx context.Context, plan *wallet.UnsignedTxPlan, signer ports.Signer,
	) (*chainhash.Hash, error)
	FinalizeAndBroadcast(
		ctx context.Context, packet *psbt.Packet,
	) (*chainhash.Hash, error)
}

// WalletServiceOpts is the struct given to the NewWalletService method
type WalletServiceOpts struct {
	MasterKey   *wallet.MasterKey
	Explorer    explorer.Service
	Fingerprint wallet.Fingerprint
	// GapLimit defaults to DefaultGapLimit.
	GapLimit uint32
}

type walletService struct {
	master      *wallet.MasterKey
	explorer    explorer.Service
	fingerprint wallet.Fingerprint
	scanner     *Scanner
	aggregator  *Aggregator
	history     *HistoryReconstructor
}

// NewWalletService ...
func NewWalletService(opts WalletServiceOpts) (WalletService, error) {
	gapLimit := opts.GapLimit
	if gapLimit == 0 {
		gapLimit = DefaultGapLimit
	}
	scanner, err := NewScanner(opts.MasterKey, opts.Explorer, gapLimit)
	if err != nil {
		return nil, err
	}

	return &walletService{
		master:      opts.MasterKey,
		explorer:    opts.Explorer,
		fingerprint: opts.Fingerprint,
		scanner:     scanner,
		aggregator:  NewAggregator(scanner),
		history:     NewHistoryReconstructor(opts.Explorer),
	}, nil
}

func (w *walletService) GetBalance(ctx context.Context) (*BalanceInfo, error) {
	agg, err := w.aggregator.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	return &BalanceInfo{
		Confirmed:   agg.Balance.Confirmed,
		Unconfirmed: agg.Balance.Unconfirmed,
	}, nil
}

func (w *walletService) GetFreshAddress(
	ctx context.Context,
) (*wallet.AddressRecord, error) {
	return w.scanner.FirstUnused(ctx, wallet.External)
}

func (w *walletService) GetFreshChangeAddress(
	ctx context.Context,
) (*wallet.AddressRecord, error) {
	return w.scanner.FirstUnused(ctx, wallet.Internal)
}

func (w *walletService) ListAddresses(
	ctx context.Context, chain wallet.ChainKind, count uint32,
) ([]*wallet.AddressRecord, error) {
	if count < 1 || count > MaxAddressCount {
		return nil, ErrInvalidAddressCount
	}
	return w.master.Addresses(chain, 0, count)
}

func (w *walletService) GetHistory(
	ctx context.Context,
) ([]domain.HistoryEntry, error) {
	agg, err := w.aggregator.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	return w.history.Reconstruct(ctx, agg.Activity)
}

func (w *walletService) GetUtxos(ctx context.Context) ([]wallet.Utxo, error) {
	agg, err := w.aggregator.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	return agg.Utxos, nil
}

func (w *walletService) ListDust(
	ctx context.Context, threshold int64,
) ([]wallet.Utxo, error) {
	if threshold < MinDustThreshold || threshold > MaxDustThreshold {
		return nil, ErrInvalidDustThreshold
	}
	utxos, err := w.GetUtxos(ctx)
	if err != nil {
		return nil, err
	}

	dust := make([]wallet.Utxo, 0)
	for _, u := range utxos {
		if u.Value < threshold {
			dust = append(dust, u)
		}
	}
	sort.SliceStable(dust, func(i, j int) bool {
		return dust[i].Value < dust[j].Value
	})
	return dust, nil
}

func (w *walletService) GetFeeEstimates(
	ctx context.Context,
) (map[int]decimal.Decimal, error) {
	estimate := w.explorer.EstimateFeeRate
	if batch, ok := w.explorer.(explorer.FeeEstimator); ok {
		rates, err := batch.EstimateFeeRates(ctx)
		if err != nil {
			return nil, err
		}
		estimate = func(_ context.Context, blocks int) (decimal.Decimal, error) {
			rate, err := explorer.PickFeeRate(rates, blocks)
			if err != nil {
				return decimal.Zero, explorer.NewProviderError(
					"estimate fee", strconv.Itoa(blocks), err,
				)
			}
			return rate, nil
		}
	}

	estimates := make(map[int]decimal.Decimal, explorer.MaxConfTarget)
	for blocks := explorer.MinConfTarget; blocks <= explorer.MaxConfTarget; blocks++ {
		rate, err := estimate(ctx, blocks)
		if err != nil {
			return nil, err
		}
		estimates[blocks] = rate
	}
	return estimates, nil
}

func (w *walletService) PrepareSend(
	ctx context.Context, req SendRequest,
) (*wallet.UnsignedTxPlan, error) {
	if req.Target <= 0 || req.Target > btcutil.MaxSatoshi {
		return nil, wallet.ErrInvalidTarget
	}

	feeRate := req.SatsPerVbyte
	if !feeRate.IsPositive() {
		blocks := req.FeeTargetBlocks
		if blocks <= 0 {
			blocks = DefaultFeeTargetBlocks
		}
		rate, err := w.explorer.EstimateFeeRate(ctx, blocks)
		if err != nil {
			return nil, err
		}
		feeRate = rate
	}

	agg, err := w.aggregator.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	selection, err := wallet.SelectCoins(agg.Utxos, req.Target, feeRate, req.Policy)
	if err != nil {
		return nil, err
	}

	change, err := w.scanner.FirstUnused(ctx, wallet.Internal)
	if err != nil {
		return nil, err
	}
	if !w.master.Owns(change) {
		return nil, fmt.Errorf(
			"%w: change address %s not derived from account key",
			wallet.ErrInvariantViolated, change.Address,
		)
	}

	plan, err := wallet.BuildUnsignedTx(wallet.BuildUnsignedTxOpts{
		Selection:   selection,
		Recipient:   req.Recipient,
		Change:      change,
		Fingerprint: w.fingerprint,
		Network:     w.master.Network(),
	})
	if err != nil {
		return nil, err
	}

	fields := log.Fields{
		"plan":      plan.ID.String(),
		"inputs":    len(selection.Selected),
		"fee":       selection.Fee,
		"fee_rate":  feeRate.String(),
		"change":    selection.Change,
		"recipient": plan.Recipient,
	}
	if selection.Change < DustLimit {
		log.WithFields(fields).Warn("change output is below the dust limit")
	}
	log.WithFields(fields).Info("unsigned transaction prepared")

	return plan, nil
}

func (w *walletService) SignAndBroadcast(
	ctx context.Context, plan *wallet.UnsignedTxPlan, signer ports.Signer,
) (*chainhash.Hash, error) {
	if plan == nil {
		return nil, ErrNullPlan
	}
	if signer == nil {
		return nil, ErrNullSigner
	}

	packet, err := signer.Sign(ctx, plan)
	if err != nil {
		if errors.Is(err, ports.ErrSigningDeclined) {
			log.WithField("plan", plan.ID.String()).Info("signing declined")
		}
		return nil, err
	}
	if packet == nil || packet.UnsignedTx == nil {
		return nil, fmt.Errorf("%w: signer returned no transaction", ErrFinalize)
	}
	if packet.UnsignedTx.TxHash() != plan.Packet.UnsignedTx.TxHash() {
		return nil, fmt.Errorf("%w: signer returned a different transaction", ErrFinalize)
	}
	return w.FinalizeAndBroadcast(ctx, packet)
}

func (w *walletService) FinalizeAndBroadcast(
	ctx context.Context, packet *psbt.Packet,
) (*chainhash.Hash, error) {
	tx, err := wallet.ExtractSignedTx(packet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFinalize, err)
	}

	txid, err := w.explorer.Broadcast(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrBroadcast, tx.TxHash(), err)
	}
	log.WithField("txid", txid.String()).Info("transaction broadcasted")
	return txid, nil
}
