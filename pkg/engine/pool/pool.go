// Package pool tracks the pair's AMM side: the two reserves, the
// constant-product swap math and the liquidity-share accounting. Reserves
// are owned by the engine's sync step (reserve = custody - booked); the pool
// itself never reads token balances.
package pool

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientLiquidity = errors.New("INSUFFICIENT_LIQUIDITY")
	ErrInsufficientStock     = errors.New("INSUFFICIENT_STOCK_AMOUNT")
	ErrInsufficientMoney     = errors.New("INSUFFICIENT_MONEY_AMOUNT")
)

// MinimumLiquidity is burned to the zero address on first mint so the pool
// can never be fully drained and the share price never manipulated from an
// empty state.
const MinimumLiquidity = 1000

// Pool is the AMM ledger of one pair.
type Pool struct {
	ReserveStock *uint256.Int
	ReserveMoney *uint256.Int
	TotalShares  *uint256.Int
	shares       map[common.Address]*uint256.Int
}

func New() *Pool {
	return &Pool{
		ReserveStock: new(uint256.Int),
		ReserveMoney: new(uint256.Int),
		TotalShares:  new(uint256.Int),
		shares:       make(map[common.Address]*uint256.Int),
	}
}

// SetReserves is called by the engine's sync step only.
func (p *Pool) SetReserves(stock, money *uint256.Int) {
	p.ReserveStock.Set(stock)
	p.ReserveMoney.Set(money)
}

// K returns reserveStock * reserveMoney.
func (p *Pool) K() *uint256.Int {
	return new(uint256.Int).Mul(p.ReserveStock, p.ReserveMoney)
}

// ShareBalance returns addr's liquidity-share balance (a copy).
func (p *Pool) ShareBalance(addr common.Address) *uint256.Int {
	if b, ok := p.shares[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// Mint credits liquidity shares for a deposit of both assets. First mint:
// sqrt(stock*money) - MinimumLiquidity, with the minimum locked at the zero
// address. Later mints: proportional floor of either asset, whichever is
// smaller, so a lopsided deposit cannot mint beyond what both legs support.
// Reserves are not touched here; the engine syncs them afterwards.
func (p *Pool) Mint(to common.Address, depStock, depMoney *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	if p.TotalShares.IsZero() {
		root := new(uint256.Int).Sqrt(new(uint256.Int).Mul(depStock, depMoney))
		if root.LtUint64(MinimumLiquidity + 1) {
			return nil, ErrInsufficientLiquidity
		}
		minted = new(uint256.Int).SubUint64(root, MinimumLiquidity)
		p.credit(common.Address{}, uint256.NewInt(MinimumLiquidity))
		p.TotalShares.Set(root)
	} else {
		byStock := new(uint256.Int).Mul(depStock, p.TotalShares)
		byStock.Div(byStock, p.ReserveStock)
		byMoney := new(uint256.Int).Mul(depMoney, p.TotalShares)
		byMoney.Div(byMoney, p.ReserveMoney)
		minted = byStock
		if byMoney.Lt(byStock) {
			minted = byMoney
		}
		if minted.IsZero() {
			return nil, ErrInsufficientLiquidity
		}
		p.TotalShares.Add(p.TotalShares, minted)
	}
	p.credit(to, minted)
	return new(uint256.Int).Set(minted), nil
}

// Burn redeems shares for the proportional floor of each reserve.
func (p *Pool) Burn(from common.Address, sh *uint256.Int) (stockOut, moneyOut *uint256.Int, err error) {
	bal, ok := p.shares[from]
	if !ok || bal.Lt(sh) {
		return nil, nil, ErrInsufficientLiquidity
	}
	stockOut = new(uint256.Int).Mul(sh, p.ReserveStock)
	stockOut.Div(stockOut, p.TotalShares)
	moneyOut = new(uint256.Int).Mul(sh, p.ReserveMoney)
	moneyOut.Div(moneyOut, p.TotalShares)
	if stockOut.IsZero() {
		return nil, nil, ErrInsufficientStock
	}
	if moneyOut.IsZero() {
		return nil, nil, ErrInsufficientMoney
	}
	bal.Sub(bal, sh)
	p.TotalShares.Sub(p.TotalShares, sh)
	return stockOut, moneyOut, nil
}

// SwapOut is the raw constant-product output for amountIn against the given
// reserves: rOut - floor(rIn*rOut / (rIn+amountIn)). No fee; callers apply
// their own fee policy on the output leg.
func SwapOut(rIn, rOut, amountIn *uint256.Int) (*uint256.Int, error) {
	if rIn.IsZero() || rOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	den := new(uint256.Int).Add(rIn, amountIn)
	keep := new(uint256.Int).Mul(rIn, rOut)
	keep.Div(keep, den)
	return new(uint256.Int).Sub(rOut, keep), nil
}

// Quote is the read-only swap quote with the fee taken multiplicatively on
// the input leg: out = rOut - rIn*rOut/(rIn + in*(10000-feeBPS)/10000).
func Quote(rIn, rOut, amountIn *uint256.Int, feeBPS uint64) (*uint256.Int, error) {
	effIn := new(uint256.Int).Mul(amountIn, uint256.NewInt(10000-feeBPS))
	effIn.Div(effIn, uint256.NewInt(10000))
	return SwapOut(rIn, rOut, effIn)
}

// Snapshot returns all share balances for persistence.
func (p *Pool) Snapshot() map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(p.shares))
	for a, b := range p.shares {
		out[a] = new(uint256.Int).Set(b)
	}
	return out
}

// Restore replaces the share table and total from a snapshot.
func (p *Pool) Restore(shares map[common.Address]*uint256.Int, total *uint256.Int) {
	p.shares = make(map[common.Address]*uint256.Int, len(shares))
	for a, b := range shares {
		p.shares[a] = new(uint256.Int).Set(b)
	}
	p.TotalShares.Set(total)
}

func (p *Pool) credit(addr common.Address, amount *uint256.Int) {
	if b, ok := p.shares[addr]; ok {
		b.Add(b, amount)
		return
	}
	p.shares[addr] = new(uint256.Int).Set(amount)
}
