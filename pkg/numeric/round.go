// Package numeric holds the rounding helpers used at the float-price
// boundary. Balance arithmetic stays in integer wei; these helpers only
// apply when converting to venue-native floats.
package numeric

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RoundTo rounds half away from zero to the given number of decimal
// places. Venue price grids are 3-dp, USDT order sizes 8-dp.
func RoundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// FloorTo truncates toward zero to the given number of decimal places.
// Used for balance caps so downstream rounding never exceeds the real
// wallet balance.
func FloorTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).RoundDown(places).Float64()
	return f
}

// WeiToUSDT converts an 18-decimal integer balance to a float USDT
// amount.
func WeiToUSDT(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return f
}

// MicroToUSDT converts a 6-decimal integer amount to a float USDT
// amount.
func MicroToUSDT(micro *big.Int) float64 {
	if micro == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(micro), big.NewFloat(1e6)).Float64()
	return f
}

// PriceToFloat converts an 18-decimal fixed-point price to a fraction
// in [0, 1].
func PriceToFloat(p *big.Int) float64 {
	return WeiToUSDT(p)
}

// USDTToWei converts a float USDT amount to 18-decimal integer wei.
func USDTToWei(v float64) *big.Int {
	d := decimal.NewFromFloat(v).Mul(decimal.New(1, 18))
	return d.BigInt()
}
