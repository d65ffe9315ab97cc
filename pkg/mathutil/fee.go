package mathutil

import (
	"github.com/shopspring/decimal"
)

var (
	// VbytesPerKvb ...
	VbytesPerKvb = decimal.NewFromInt(1000)
)

// FeeForVbytes returns the fee in satoshis paid by vbytes virtual bytes at the
// given rate in sat/vB. Fractional satoshis are always rounded up so that the
// fee never falls below the requested rate.
func FeeForVbytes(vbytes decimal.Decimal, satsPerVbyte decimal.Decimal) int64 {
	return CeilSats(vbytes.Mul(satsPerVbyte))
}

// SatsPerVbyteFromBtcPerKvb converts a fee rate expressed in BTC/kvB, like
// the one returned by electrum servers and bitcoind, to sat/vB.
func SatsPerVbyteFromBtcPerKvb(btcPerKvb decimal.Decimal) decimal.Decimal {
	return btcPerKvb.Mul(SatsPerBitcoinDecimal).Div(VbytesPerKvb)
}
