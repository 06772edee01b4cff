package numeric

import (
	"math/big"
	"testing"
)

func TestRoundTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		v      float64
		places int32
		want   float64
	}{
		{"price-3dp-down", 0.2432, 3, 0.243},
		{"price-3dp-half-up", 0.2888, 3, 0.289},
		{"half-away-from-zero", 0.0135, 3, 0.014},
		{"size-8dp", 3.612500004, 8, 3.6125},
		{"negative-half", -0.0135, 3, -0.014},
		{"zero", 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundTo(tt.v, tt.places); got != tt.want {
				t.Errorf("RoundTo(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
			}
		})
	}
}

func TestFloorTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		v      float64
		places int32
		want   float64
	}{
		{"truncates-not-rounds", 1.96078439, 8, 1.96078439},
		{"fee-buffer-quotient", 1.9607843137, 8, 1.96078431},
		{"already-exact", 2.5, 8, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FloorTo(tt.v, tt.places); got != tt.want {
				t.Errorf("FloorTo(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
			}
		})
	}
}

func TestWeiToUSDT(t *testing.T) {
	t.Parallel()

	if got := WeiToUSDT(nil); got != 0 {
		t.Errorf("WeiToUSDT(nil) = %v, want 0", got)
	}

	wei, _ := new(big.Int).SetString("2500000000000000000", 10)
	if got := WeiToUSDT(wei); got != 2.5 {
		t.Errorf("WeiToUSDT(2.5e18) = %v, want 2.5", got)
	}
}

func TestMicroToUSDT(t *testing.T) {
	t.Parallel()

	if got := MicroToUSDT(big.NewInt(1_500_000)); got != 1.5 {
		t.Errorf("MicroToUSDT(1.5e6) = %v, want 1.5", got)
	}
	if got := MicroToUSDT(nil); got != 0 {
		t.Errorf("MicroToUSDT(nil) = %v, want 0", got)
	}
}

func TestUSDTToWeiRoundTrips(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0, 2, 2.5, 100, 0.45} {
		if got := WeiToUSDT(USDTToWei(v)); got != v {
			t.Errorf("round trip of %v = %v", v, got)
		}
	}
}
