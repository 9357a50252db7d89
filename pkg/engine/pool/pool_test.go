package pool

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestFirstMintLocksMinimumLiquidity(t *testing.T) {
	p := New()
	minted, err := p.Mint(alice, u(10_000), u(1_000_000))
	if err != nil {
		t.Fatal(err)
	}
	// sqrt(10000*1000000) = 100000, minus the locked 1000
	if minted.Uint64() != 99_000 {
		t.Fatalf("minted %s, want 99000", minted.Dec())
	}
	if got := p.ShareBalance(common.Address{}); got.Uint64() != MinimumLiquidity {
		t.Fatalf("locked shares %s, want %d", got.Dec(), MinimumLiquidity)
	}
	if p.TotalShares.Uint64() != 100_000 {
		t.Fatalf("total shares %s, want 100000", p.TotalShares.Dec())
	}
}

func TestFirstMintTooSmall(t *testing.T) {
	p := New()
	if _, err := p.Mint(alice, u(10), u(10)); err != ErrInsufficientLiquidity {
		t.Fatalf("tiny first mint: got %v, want ErrInsufficientLiquidity", err)
	}
}

func TestSubsequentMintProportionalFloor(t *testing.T) {
	p := New()
	if _, err := p.Mint(alice, u(100), u(4_000_000)); err != nil {
		t.Fatal(err)
	}
	// total sqrt(100*4e6) = 20000
	if p.TotalShares.Uint64() != 20_000 {
		t.Fatalf("total shares %s, want 20000", p.TotalShares.Dec())
	}
	p.SetReserves(u(100), u(4_000_000))

	// lopsided deposit: money supports less than stock
	minted, err := p.Mint(bob, u(50), u(1_000_000))
	if err != nil {
		t.Fatal(err)
	}
	// byStock = 50*20000/100 = 10000, byMoney = 1e6*20000/4e6 = 5000
	if minted.Uint64() != 5_000 {
		t.Fatalf("minted %s, want 5000", minted.Dec())
	}
	if p.TotalShares.Uint64() != 25_000 {
		t.Fatalf("total shares %s, want 25000", p.TotalShares.Dec())
	}
}

func TestBurnProportional(t *testing.T) {
	p := New()
	if _, err := p.Mint(alice, u(10_000), u(1_000_000)); err != nil {
		t.Fatal(err)
	}
	p.SetReserves(u(10_000), u(1_000_000))

	stockOut, moneyOut, err := p.Burn(alice, u(10_000))
	if err != nil {
		t.Fatal(err)
	}
	// 10000/100000 of each reserve
	if stockOut.Uint64() != 1_000 || moneyOut.Uint64() != 100_000 {
		t.Fatalf("burn outputs (%s, %s), want (1000, 100000)", stockOut.Dec(), moneyOut.Dec())
	}
	if p.ShareBalance(alice).Uint64() != 89_000 {
		t.Fatalf("alice shares %s, want 89000", p.ShareBalance(alice).Dec())
	}

	// burning more than held, or from an empty account, is the canonical
	// liquidity error
	if _, _, err := p.Burn(alice, u(1_000_000)); err != ErrInsufficientLiquidity {
		t.Fatalf("over-burn: got %v, want ErrInsufficientLiquidity", err)
	}
	if _, _, err := p.Burn(bob, u(1)); err != ErrInsufficientLiquidity {
		t.Fatalf("stranger burn: got %v, want ErrInsufficientLiquidity", err)
	}
}

func TestBurnZeroOutputErrors(t *testing.T) {
	p := New()
	if _, err := p.Mint(alice, u(2_000_000), u(2_000_000)); err != nil {
		t.Fatal(err)
	}
	// stock reserve so small a 1-share burn floors to zero stock
	p.SetReserves(u(1), u(2_000_000))
	if _, _, err := p.Burn(alice, u(1)); err != ErrInsufficientStock {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}
	p.SetReserves(u(2_000_000), u(1))
	if _, _, err := p.Burn(alice, u(1)); err != ErrInsufficientMoney {
		t.Fatalf("got %v, want ErrInsufficientMoney", err)
	}
}

func TestSwapOut(t *testing.T) {
	// 10000 money into (10000 stock, 1000000 money):
	// out = 10000 - floor(1e10/1010000) = 10000 - 9900 = 100
	out, err := SwapOut(u(1_000_000), u(10_000), u(10_000))
	if err != nil {
		t.Fatal(err)
	}
	if out.Uint64() != 100 {
		t.Fatalf("swap out %s, want 100", out.Dec())
	}

	if _, err := SwapOut(u(0), u(10_000), u(1)); err != ErrInsufficientLiquidity {
		t.Fatalf("empty pool: got %v, want ErrInsufficientLiquidity", err)
	}
}

func TestSwapProductMonotonic(t *testing.T) {
	// SwapOut is the fee-less gross; what actually leaves the pool is the
	// gross minus the retained ceil(30bps) fee. The product invariant holds
	// at that settlement level: floor division can cost up to den-1, the
	// retained fee always puts at least den back.
	rIn, rOut := u(123_457), u(987_653)
	before := new(uint256.Int).Mul(rIn, rOut)
	for _, in := range []uint64{1, 7, 999, 123_456, 5_000_000} {
		gross, err := SwapOut(rIn, rOut, u(in))
		if err != nil {
			t.Fatal(err)
		}
		fee := new(uint256.Int).Mul(gross, u(30))
		fee.AddUint64(fee, 9_999)
		fee.Div(fee, u(10_000))
		payout := new(uint256.Int).Sub(gross, fee)

		nIn := new(uint256.Int).Add(rIn, u(in))
		nOut := new(uint256.Int).Sub(rOut, payout)
		after := new(uint256.Int).Mul(nIn, nOut)
		if after.Lt(before) {
			t.Fatalf("product shrank for in=%d", in)
		}
	}
}

func TestQuoteInputFee(t *testing.T) {
	// fee 30bps on the input: effective in = 10000*9970/10000 = 9970
	// out = 10000 - floor(1e10/1009970) = 10000 - 9901 = 99
	out, err := Quote(u(1_000_000), u(10_000), u(10_000), 30)
	if err != nil {
		t.Fatal(err)
	}
	if out.Uint64() != 99 {
		t.Fatalf("quote %s, want 99", out.Dec())
	}
}
