// Package mathutil provides fixed-point helpers for converting between
// satoshis and whole-coin amounts.
package mathutil

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// BigOne represents a single coin in satoshis, precision 8.
	BigOne = uint64(math.Pow10(8))
	// BigOneDecimal represents a single coin as decimal.Decimal.
	BigOneDecimal = decimal.NewFromInt(int64(BigOne))
)

func init() {
	decimal.DivisionPrecision = 8
}

// SatsToCoins converts an amount in satoshis to its coin denomination.
func SatsToCoins(sats uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sats), 0).
		Div(BigOneDecimal)
}

// CoinsToSats converts a coin amount to satoshis, truncating anything below
// one satoshi.
func CoinsToSats(coins decimal.Decimal) uint64 {
	return coins.Mul(BigOneDecimal).BigInt().Uint64()
}

// Add takes two uint64 numbers and sums them returning the result as
// decimal.Decimal.
func Add(x, y uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0).
		Add(decimal.NewFromBigInt(new(big.Int).SetUint64(y), 0))
}

// Sub takes two uint64 numbers and subtracts them returning the result as
// decimal.Decimal.
func Sub(x, y uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0).
		Sub(decimal.NewFromBigInt(new(big.Int).SetUint64(y), 0))
}
