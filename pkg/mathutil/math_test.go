package mathutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSatsBtcConversion(t *testing.T) {
	tests := []struct {
		btc  string
		sats int64
	}{
		{"1", 100000000},
		{"0.00050000", 50000},
		{"0.00000001", 1},
		{"21000000", 2100000000000000},
	}
	for _, tt := range tests {
		btc := decimal.RequireFromString(tt.btc)
		assert.Equal(t, tt.sats, SatsFromBtc(btc))
		assert.True(t, btc.Equal(BtcFromSats(tt.sats)), tt.btc)
	}
}

func TestFeeForVbytes(t *testing.T) {
	tests := []struct {
		vbytes string
		rate   string
		fee    int64
	}{
		{"26", "1", 26},
		{"98", "1", 98},
		{"98", "1.5", 147},
		{"26", "0.1", 3},
		{"98", "0.01", 1},
		{"26", "0", 0},
		{"98", "12.25", 1201},
	}
	for _, tt := range tests {
		fee := FeeForVbytes(
			decimal.RequireFromString(tt.vbytes), decimal.RequireFromString(tt.rate),
		)
		assert.Equal(t, tt.fee, fee, "%s vB at %s sat/vB", tt.vbytes, tt.rate)
	}
}

func TestSatsPerVbyteFromBtcPerKvb(t *testing.T) {
	tests := []struct {
		btcPerKvb string
		expected  string
	}{
		{"0.00001", "1"},
		{"0.0001", "10"},
		{"0.00012345", "12.345"},
		{"0", "0"},
	}
	for _, tt := range tests {
		got := SatsPerVbyteFromBtcPerKvb(decimal.RequireFromString(tt.btcPerKvb))
		assert.True(
			t, decimal.RequireFromString(tt.expected).Equal(got),
			"%s BTC/kvB -> %s", tt.btcPerKvb, got,
		)
	}
}
