package wallet

import (
	"github.com/rustaceanrob/coinline/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Transaction size constants used by the coin selector, in virtual bytes.
const (
	// TxVersionSize ...
	TxVersionSize = 4
	// TxLocktimeSize ...
	TxLocktimeSize = 4
	// TxInputCountSize is the worst case compact-size for the input counter.
	TxInputCountSize = 9
	// TxOutputCountSize is the worst case compact-size for the output counter.
	TxOutputCountSize = 9
	// TxOverheadSize is the fixed part of every transaction.
	TxOverheadSize = TxVersionSize + TxLocktimeSize +
		TxInputCountSize + TxOutputCountSize

	// P2WPKHInputRawSize is the average size of a signed p2wpkh input before
	// the segwit discount is applied.
	P2WPKHInputRawSize = 147
	// P2WPKHInputSize is P2WPKHInputRawSize discounted by a factor of 1.5.
	P2WPKHInputSize = P2WPKHInputRawSize * 2 / 3
)

// OverheadFee returns the fee paid for the fixed part of a transaction.
func OverheadFee(satsPerVbyte decimal.Decimal) int64 {
	return mathutil.FeeForVbytes(decimal.NewFromInt(TxOverheadSize), satsPerVbyte)
}

// InputFee returns the fee paid for adding one p2wpkh input.
func InputFee(satsPerVbyte decimal.Decimal) int64 {
	return mathutil.FeeForVbytes(decimal.NewFromInt(P2WPKHInputSize), satsPerVbyte)
}

// EstimateFee returns the fee the coin selector budgets for a transaction
// spending numInputs p2wpkh inputs.
func EstimateFee(numInputs int, satsPerVbyte decimal.Decimal) int64 {
	return OverheadFee(satsPerVbyte) + int64(numInputs)*InputFee(satsPerVbyte)
}
