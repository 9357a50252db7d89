package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/poolbook/pkg/engine/book"
	"github.com/uhyunpark/poolbook/pkg/engine/token"
)

// State is a complete copy of a pair's mutable state, shaped for gob
// encoding: the resting orders with their chain heads, the share table,
// both booked totals, both reserves and the full balance ledger.
type State struct {
	Orders    []*book.Order
	FirstBuy  book.ID
	FirstSell book.ID

	Shares      map[common.Address]*uint256.Int
	TotalShares *uint256.Int

	BookedStock *uint256.Int
	BookedMoney *uint256.Int

	ReserveStock *uint256.Int
	ReserveMoney *uint256.Int

	Balances []token.BalanceRecord
}

// State captures a snapshot under the read lock.
func (p *Pair) State() *State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	orders := p.book.Orders()
	copies := make([]*book.Order, len(orders))
	for i, o := range orders {
		cp := *o
		cp.Amount = new(uint256.Int).Set(o.Amount)
		cp.Total = new(uint256.Int).Set(o.Total)
		cp.BookedMoney = new(uint256.Int).Set(o.BookedMoney)
		copies[i] = &cp
	}

	return &State{
		Orders:       copies,
		FirstBuy:     p.book.FirstID(true),
		FirstSell:    p.book.FirstID(false),
		Shares:       p.pool.Snapshot(),
		TotalShares:  new(uint256.Int).Set(p.pool.TotalShares),
		BookedStock:  new(uint256.Int).Set(p.bookedStock),
		BookedMoney:  new(uint256.Int).Set(p.bookedMoney),
		ReserveStock: new(uint256.Int).Set(p.pool.ReserveStock),
		ReserveMoney: new(uint256.Int).Set(p.pool.ReserveMoney),
		Balances:     p.ledger.Snapshot(),
	}
}

// RestoreState replaces the pair's state with a snapshot. Meant for startup
// recovery before the pair is serving calls.
func (p *Pair) RestoreState(st *State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ledger.Restore(st.Balances)
	p.book.Restore(st.Orders, st.FirstBuy, st.FirstSell)
	p.pool.Restore(st.Shares, st.TotalShares)
	p.pool.SetReserves(st.ReserveStock, st.ReserveMoney)
	p.bookedStock.Set(st.BookedStock)
	p.bookedMoney.Set(st.BookedMoney)
}
