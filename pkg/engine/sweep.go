package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/poolbook/pkg/engine/book"
	"github.com/uhyunpark/poolbook/pkg/engine/pool"
	"github.com/uhyunpark/poolbook/pkg/engine/price"
)

// sweep carries one order's matching pass. Pool interaction is two-phase:
// "till" steps move virtual reserves toward each candidate price and
// accumulate intoPool; the one real swap runs at the end of the call
// against the call-entry reserves, so the whole pool leg prices as a
// single trade.
type sweep struct {
	p      *Pair
	sender common.Address
	isBuy  bool
	limit  *price.Rat // nil for market orders

	// remainStock: stock still wanted via the book (buys) or the stock
	// input budget (sells). moneyBudget: the money input budget, buys only.
	remainStock *uint256.Int
	moneyBudget *uint256.Int

	vS, vM      *uint256.Int // virtual reserves for till pricing
	kBefore     *uint256.Int
	intoPool    *uint256.Int
	poolTouched bool

	events []Event
}

func (p *Pair) newSweep(sender common.Address, isBuy bool, limit *price.Rat,
	remainStock, moneyBudget *uint256.Int) *sweep {
	return &sweep{
		p:           p,
		sender:      sender,
		isBuy:       isBuy,
		limit:       limit,
		remainStock: remainStock,
		moneyBudget: moneyBudget,
		vS:          new(uint256.Int).Set(p.pool.ReserveStock),
		vM:          new(uint256.Int).Set(p.pool.ReserveMoney),
		kBefore:     p.pool.K(),
		intoPool:    new(uint256.Int),
	}
}

func (s *sweep) inputLeft() *uint256.Int {
	if s.isBuy {
		return new(uint256.Int).Set(s.moneyBudget)
	}
	return new(uint256.Int).Set(s.remainStock)
}

func (s *sweep) spendInput(x *uint256.Int) {
	if s.isBuy {
		s.moneyBudget.Sub(s.moneyBudget, x)
	} else {
		s.remainStock.Sub(s.remainStock, x)
	}
}

// run consumes opposing book orders in price order, moving the pool's
// virtual price up to each maker's price first so the taker always takes
// the cheaper source. Stops at the limit price, at input exhaustion, or
// when the next maker cannot be reached.
func (s *sweep) run() {
	refExp := s.p.cfg.RefExp
	for {
		if s.remainStock.IsZero() {
			break
		}
		o := s.p.book.First(!s.isBuy)
		if o == nil {
			break
		}
		oRat := o.Price.Rat(refExp)
		if s.limit != nil {
			c := oRat.Cmp(*s.limit)
			if s.isBuy && c > 0 {
				break
			}
			if !s.isBuy && c < 0 {
				break
			}
		}

		s.tillPrice(oRat)

		deal := umin(o.Amount, s.remainStock)
		if s.isBuy {
			deal = umin(deal, oRat.DivFloor(s.moneyBudget))
		}
		if deal.IsZero() {
			break
		}
		s.dealBook(o, oRat, deal)
		if !o.Amount.IsZero() {
			// taker exhausted against this maker
			break
		}
		s.p.book.PopFirst(!s.isBuy)
	}

	if s.limit != nil && !s.remainStock.IsZero() {
		s.tillPrice(*s.limit)
	}
}

// tillPrice moves the virtual reserves toward target, bounded by the
// taker's remaining input. The bound is the exact integer solution of
// vM'/vS' == target under constant product: sqrt(vS*vM*target) - vM for
// buys (money in) and the mirrored form for sells (stock in).
func (s *sweep) tillPrice(target price.Rat) {
	if s.vS.IsZero() || s.vM.IsZero() {
		return
	}
	kv := new(uint256.Int).Mul(s.vS, s.vM)

	if s.isBuy {
		t := new(uint256.Int).Mul(kv, target.Num)
		t.Div(t, target.Den)
		mx := new(uint256.Int).Sqrt(t)
		if !mx.Gt(s.vM) {
			return
		}
		in := mx.Sub(mx, s.vM)
		if s.moneyBudget.Lt(in) {
			in.Set(s.moneyBudget)
		}
		if in.IsZero() {
			return
		}
		den := new(uint256.Int).Add(s.vM, in)
		s.vS.Div(kv, den)
		s.vM.Add(s.vM, in)
		s.intoPool.Add(s.intoPool, in)
		s.moneyBudget.Sub(s.moneyBudget, in)
		return
	}

	t := new(uint256.Int).Mul(kv, target.Den)
	t.Div(t, target.Num)
	mx := new(uint256.Int).Sqrt(t)
	if !mx.Gt(s.vS) {
		return
	}
	in := mx.Sub(mx, s.vS)
	if s.remainStock.Lt(in) {
		in.Set(s.remainStock)
	}
	if in.IsZero() {
		return
	}
	den := new(uint256.Int).Add(s.vS, in)
	s.vM.Div(kv, den)
	s.vS.Add(s.vS, in)
	s.intoPool.Add(s.intoPool, in)
	s.remainStock.Sub(s.remainStock, in)
}

// dealBook executes one fill against the best opposing order at the
// maker's price. The maker's side is exact; the taker pays the fee (in the
// token received) and absorbs all rounding.
func (s *sweep) dealBook(o *book.Order, oRat price.Rat, deal *uint256.Int) {
	p := s.p
	if s.isBuy {
		// maker sells stock, taker pays money
		moneyPaid := oRat.MulCeil(deal)
		fee := feeHalfUp(deal, p.cfg.FeeBPS)
		p.transferOut(p.cfg.Money, o.Owner, moneyPaid)
		p.transferOut(p.cfg.Stock, s.sender, new(uint256.Int).Sub(deal, fee))
		p.bookedStock.Sub(p.bookedStock, deal)
		o.Amount.Sub(o.Amount, deal)
		s.remainStock.Sub(s.remainStock, deal)
		s.moneyBudget.Sub(s.moneyBudget, moneyPaid)
	} else {
		// maker buys stock, pays from its booked money
		moneyDeal := oRat.MulFloor(deal)
		if moneyDeal.Gt(o.BookedMoney) {
			moneyDeal.Set(o.BookedMoney)
		}
		fee := feeHalfUp(moneyDeal, p.cfg.FeeBPS)
		p.transferOut(p.cfg.Stock, o.Owner, deal)
		p.transferOut(p.cfg.Money, s.sender, new(uint256.Int).Sub(moneyDeal, fee))
		o.BookedMoney.Sub(o.BookedMoney, moneyDeal)
		p.bookedMoney.Sub(p.bookedMoney, moneyDeal)
		o.Amount.Sub(o.Amount, deal)
		s.remainStock.Sub(s.remainStock, deal)
		if o.Amount.IsZero() && !o.BookedMoney.IsZero() {
			// collateral dust on a filled order joins the reserves via sync
			p.bookedMoney.Sub(p.bookedMoney, o.BookedMoney)
			o.BookedMoney.Clear()
		}
	}

	s.events = append(s.events, OrderChangedEvent{
		Price:    o.Price,
		OrderID:  o.ID,
		IsBuy:    !s.isBuy,
		Remained: new(uint256.Int).Set(o.Amount),
	})
}

// settlePool executes the call's single real pool swap for the accumulated
// input, on the call-entry reserves. The output-leg fee stays in the pool.
func (s *sweep) settlePool() {
	if s.intoPool.IsZero() {
		return
	}
	p := s.p

	var rIn, rOut *uint256.Int
	var outToken = p.cfg.Stock
	if s.isBuy {
		rIn, rOut = p.pool.ReserveMoney, p.pool.ReserveStock
	} else {
		rIn, rOut = p.pool.ReserveStock, p.pool.ReserveMoney
		outToken = p.cfg.Money
	}

	gross, err := pool.SwapOut(rIn, rOut, s.intoPool)
	if err != nil {
		// intoPool only accumulates against a non-empty pool
		panic(fmt.Sprintf("pool swap: %v", err))
	}
	fee := feeCeil(gross, p.cfg.FeeBPS)
	payout := new(uint256.Int)
	if gross.Gt(fee) {
		payout.Sub(gross, fee)
	}
	p.transferOut(outToken, s.sender, payout)

	s.events = append(s.events, DealWithPoolEvent{
		AmountIn:  new(uint256.Int).Set(s.intoPool),
		AmountOut: gross,
		IsBuy:     s.isBuy,
	})
	s.poolTouched = true
}

func umin(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}

// feeHalfUp is the book-deal taker fee: round-half-up of x*bps/10000.
func feeHalfUp(x *uint256.Int, bps uint64) *uint256.Int {
	z := new(uint256.Int).Mul(x, uint256.NewInt(bps))
	z.AddUint64(z, 5000)
	return z.Div(z, uint256.NewInt(10000))
}

// feeCeil is the pool-swap output fee: ceil of x*bps/10000.
func feeCeil(x *uint256.Int, bps uint64) *uint256.Int {
	z := new(uint256.Int).Mul(x, uint256.NewInt(bps))
	z.AddUint64(z, 9999)
	return z.Div(z, uint256.NewInt(10000))
}
