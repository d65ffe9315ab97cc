package application

import (
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/shopspring/decimal"
)

const (
	// DefaultFeeTargetBlocks is the confirmation target used when a send
	// request does not specify one.
	DefaultFeeTargetBlocks = 6
	// DustLimit is the smallest p2wpkh output relayed at the default min
	// relay fee.
	DustLimit = 294
	// MinDustThreshold ...
	MinDustThreshold = 500
	// MaxDustThreshold ...
	MaxDustThreshold = 10000
	// MaxAddressCount ...
	MaxAddressCount = 1000
)

// BalanceInfo is the balance of the whole wallet in satoshis.
type BalanceInfo struct {
	Confirmed   int64
	Unconfirmed int64
}

// Total ...
func (b BalanceInfo) Total() int64 {
	return b.Confirmed + b.Unconfirmed
}

// SendRequest describes a payment to a single recipient.
type SendRequest struct {
	// Target is the amount in satoshis paid to Recipient.
	Target    int64
	Recipient string
	// FeeTargetBlocks is the confirmation target the fee rate is estimated
	// for, defaults to DefaultFeeTargetBlocks.
	FeeTargetBlocks int
	// SatsPerVbyte, if positive, overrides the estimated fee rate.
	SatsPerVbyte decimal.Decimal
	Policy       wallet.SelectionPolicy
}
