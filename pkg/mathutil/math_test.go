package mathutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSatsToCoins(t *testing.T) {
	tests := []struct {
		sats  uint64
		coins string
	}{
		{0, "0"},
		{1, "0.00000001"},
		{330, "0.0000033"},
		{100_000_000, "1"},
		{2_150_000_000, "21.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.coins, SatsToCoins(tt.sats).String())
	}
}

func TestCoinsToSats(t *testing.T) {
	tests := []struct {
		coins string
		sats  uint64
	}{
		{"0", 0},
		{"0.00000001", 1},
		{"1", 100_000_000},
		{"21.5", 2_150_000_000},
		// below one satoshi truncates
		{"0.000000019", 1},
	}
	for _, tt := range tests {
		coins, err := decimal.NewFromString(tt.coins)
		assert.NoError(t, err)
		assert.Equal(t, tt.sats, CoinsToSats(coins))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, sats := range []uint64{1, 330, 546, 100_000_000, 2_099_999_997_690_000} {
		assert.Equal(t, sats, CoinsToSats(SatsToCoins(sats)))
	}
}
