package mathutil

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	//SatsPerBitcoin is the number of satoshis in one bitcoin
	SatsPerBitcoin = int64(math.Pow10(8))
	//SatsPerBitcoinDecimal is SatsPerBitcoin as decimal.Decimal
	SatsPerBitcoinDecimal = decimal.NewFromInt(SatsPerBitcoin)
)

func init() {
	decimal.DivisionPrecision = 8
}

//BtcFromSats converts an amount of satoshis to bitcoin
func BtcFromSats(sats int64) decimal.Decimal {
	return decimal.NewFromInt(sats).Div(SatsPerBitcoinDecimal)
}

//SatsFromBtc converts an amount of bitcoin to satoshis, rounding to the
//nearest satoshi
func SatsFromBtc(btc decimal.Decimal) int64 {
	return btc.Mul(SatsPerBitcoinDecimal).Round(0).IntPart()
}

//CeilSats rounds a fractional amount of satoshis up to the next integer
func CeilSats(sats decimal.Decimal) int64 {
	return sats.Ceil().IntPart()
}
