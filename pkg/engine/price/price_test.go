package price

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		sig uint32
		exp uint8
	}{
		{10_000_000, 0},
		{10_000_000, 23},
		{99_999_999, 31},
		{50_000_000, 18},
		{12_345_678, 7},
	}
	for _, tt := range tests {
		p := Encode(tt.sig, tt.exp)
		sig, exp := p.Decode()
		if sig != tt.sig || exp != tt.exp {
			t.Errorf("round trip (%d,%d) -> (%d,%d)", tt.sig, tt.exp, sig, exp)
		}
	}
}

func TestValidateBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		sig     uint32
		wantErr bool
	}{
		{"lower bound", 10_000_000, false},
		{"upper bound", 99_999_999, false},
		{"too few digits", 105_000, true},
		{"one below lower", 9_999_999, true},
		{"too many digits", 105_000_000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Encode(tt.sig, 23).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(sig=%d) err=%v, wantErr=%v", tt.sig, err, tt.wantErr)
			}
			if err != nil && err != ErrInvalidPrice {
				t.Errorf("expected ErrInvalidPrice, got %v", err)
			}
		})
	}
}

func TestRatValue(t *testing.T) {
	// sig=1e7, exp=18, refExp=23 -> 1e7 * 10^-5 = 100
	r := Encode(10_000_000, 18).Rat(DefaultRefExp)
	hundred := r.MulFloor(uint256.NewInt(1))
	if hundred.Uint64() != 100 {
		t.Fatalf("price value = %s, want 100", hundred.Dec())
	}

	// exp above refExp: sig=1e7, exp=25 -> 1e7 * 10^2 = 1e9
	r = Encode(10_000_000, 25).Rat(DefaultRefExp)
	if got := r.MulFloor(uint256.NewInt(1)); got.Uint64() != 1_000_000_000 {
		t.Fatalf("price value = %s, want 1e9", got.Dec())
	}
}

func TestRatRounding(t *testing.T) {
	// price 1.5: sig=15_000_000, exp=16 -> 1.5e7 * 10^-7
	r := Encode(15_000_000, 16).Rat(DefaultRefExp)

	if got := r.MulFloor(uint256.NewInt(3)); got.Uint64() != 4 {
		t.Errorf("MulFloor(3 * 1.5) = %s, want 4", got.Dec())
	}
	if got := r.MulCeil(uint256.NewInt(3)); got.Uint64() != 5 {
		t.Errorf("MulCeil(3 * 1.5) = %s, want 5", got.Dec())
	}
	if got := r.DivFloor(uint256.NewInt(10)); got.Uint64() != 6 {
		t.Errorf("DivFloor(10 / 1.5) = %s, want 6", got.Dec())
	}
}

func TestCmp(t *testing.T) {
	p100 := Encode(10_000_000, 18)  // 100
	p101 := Encode(10_100_000, 18)  // 101
	p100b := Encode(10_000_000, 18) // 100 again
	if Cmp(p100, p101, DefaultRefExp) != -1 {
		t.Error("100 < 101 expected")
	}
	if Cmp(p101, p100, DefaultRefExp) != 1 {
		t.Error("101 > 100 expected")
	}
	if Cmp(p100, p100b, DefaultRefExp) != 0 {
		t.Error("100 == 100 expected")
	}
	// cross-exponent: 1e9 as sig=1e7/exp=25 vs sig=1e8-1/exp=24
	big := Encode(10_000_000, 25)   // 1e9
	small := Encode(99_999_999, 24) // 999,999,990... * 10^1 -> 9.9999999e8
	if Cmp(big, small, DefaultRefExp) != 1 {
		t.Error("1e9 > 9.9999999e8 expected")
	}
}
