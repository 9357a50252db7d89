// Package engine implements the hybrid exchange pair: a constant-product
// pool and a price-time-priority limit order book over one asset pair,
// matched against whichever source executes better for the taker.
//
// Calls are fully serialized and all-or-nothing: every error is raised
// before the first state mutation. Callers deposit assets into the pair's
// custody address first, then invoke an operation; the engine measures the
// fresh deposit as custody minus (reserve + booked) and re-derives reserves
// the same way after every call, so donations and rounding dust are
// absorbed into the pool.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/uhyunpark/poolbook/pkg/engine/book"
	"github.com/uhyunpark/poolbook/pkg/engine/pool"
	"github.com/uhyunpark/poolbook/pkg/engine/price"
	"github.com/uhyunpark/poolbook/pkg/engine/token"
)

// Config fixes a pair's immutable parameters at creation.
type Config struct {
	Stock    token.Token
	Money    token.Token
	PairAddr common.Address // custody address of the pair itself
	FeeBPS   uint64         // taker fee, basis points (default 30)
	RefExp   int            // price reference exponent (default 23)
	HopLimit int            // list-walk budget for hints
}

// Receipt reports what one mutating call did.
type Receipt struct {
	Events []Event
	// Remained is the stock amount left resting after a limit order
	// (zero when nothing was inserted).
	Remained *uint256.Int
	// OrderID is the id a limit order was assigned (the requested id, or
	// the first free one above it when that was taken).
	OrderID book.ID
}

// Pair is one trading pair instance. Mutating entry points serialize on the
// pair lock; only re-entry from a hook, which would observe mid-mutation
// state, fails with LOCKED.
type Pair struct {
	mu     sync.RWMutex
	inHook atomic.Bool
	cfg    Config

	ledger *token.Ledger
	book   *book.Book
	pool   *pool.Pool

	bookedStock *uint256.Int
	bookedMoney *uint256.Int

	log *zap.SugaredLogger

	// OnEvent, when set, observes every emitted event after a successful
	// call (journaling, websocket push). Hooks run with the call's lock
	// still held: mutating re-entry fails with LOCKED and the read
	// getters must not be called until the hook returns.
	OnEvent func(Event)
	// OnMutate, when set, runs after every successful mutating call
	// (persistence hook). Same locking constraint as OnEvent.
	OnMutate func()
}

func NewPair(cfg Config, ledger *token.Ledger, log *zap.SugaredLogger) (*Pair, error) {
	if cfg.Stock.Same(cfg.Money) {
		return nil, ErrInvalidToken
	}
	if cfg.FeeBPS == 0 {
		cfg.FeeBPS = 30
	}
	if cfg.RefExp == 0 {
		cfg.RefExp = price.DefaultRefExp
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pair{
		cfg:         cfg,
		ledger:      ledger,
		book:        book.New(cfg.RefExp, cfg.HopLimit),
		pool:        pool.New(),
		bookedStock: new(uint256.Int),
		bookedMoney: new(uint256.Int),
		log:         log,
	}, nil
}

func (p *Pair) Config() Config                             { return p.cfg }
func (p *Pair) Ledger() *token.Ledger                      { return p.ledger }
func (p *Pair) ShareBalance(a common.Address) *uint256.Int { return p.pool.ShareBalance(a) }

// lock acquires the mutation guard. Independent callers block until their
// turn; only re-entry from a hook, which already sits inside a call, fails
// with LOCKED.
func (p *Pair) lock() error {
	if p.inHook.Load() {
		return ErrLocked
	}
	p.mu.Lock()
	return nil
}

// custody returns the pair's balance of t.
func (p *Pair) custody(t token.Token) *uint256.Int {
	return p.ledger.BalanceOf(t, p.cfg.PairAddr)
}

// deposit measures the caller's fresh deposit of t: custody beyond what
// reserves and booked orders account for.
func (p *Pair) deposit(t token.Token) *uint256.Int {
	c := p.custody(t)
	if t.Same(p.cfg.Stock) {
		c.Sub(c, p.pool.ReserveStock)
		c.Sub(c, p.bookedStock)
	} else {
		c.Sub(c, p.pool.ReserveMoney)
		c.Sub(c, p.bookedMoney)
	}
	return c
}

// sync re-derives both reserves from custody minus booked and emits the
// Sync snapshot. poolTouched selects the product-monotonicity check; a
// violation is a defect, never caller-reachable, and aborts the process.
func (p *Pair) sync(evs *[]Event, kBefore *uint256.Int, poolTouched bool) {
	rs := p.custody(p.cfg.Stock)
	rs.Sub(rs, p.bookedStock)
	rm := p.custody(p.cfg.Money)
	rm.Sub(rm, p.bookedMoney)
	p.pool.SetReserves(rs, rm)

	if poolTouched {
		kAfter := p.pool.K()
		if kAfter.Lt(kBefore) {
			panic(fmt.Sprintf("pool product shrank: %s -> %s", kBefore.Dec(), kAfter.Dec()))
		}
	}
	*evs = append(*evs, SyncEvent{
		ReserveStock: new(uint256.Int).Set(rs),
		ReserveMoney: new(uint256.Int).Set(rm),
	})
}

// finish fires hooks and builds the receipt. The hook window is flagged so
// a mutating call issued from inside a hook fails with LOCKED instead of
// deadlocking on its own lock.
func (p *Pair) finish(evs []Event) *Receipt {
	if p.OnEvent != nil || p.OnMutate != nil {
		p.inHook.Store(true)
		defer p.inHook.Store(false)
	}
	if p.OnEvent != nil {
		for _, e := range evs {
			p.OnEvent(e)
		}
	}
	if p.OnMutate != nil {
		p.OnMutate()
	}
	return &Receipt{Events: evs, Remained: new(uint256.Int)}
}

// transferOut pays amount of t out of custody. The engine only pays out
// amounts it has accounted for; a failure here is a defect.
func (p *Pair) transferOut(t token.Token, to common.Address, amount *uint256.Int) {
	if err := p.ledger.Transfer(t, p.cfg.PairAddr, to, amount); err != nil {
		panic(fmt.Sprintf("custody underflow paying %s: %v", t.Symbol, err))
	}
}

// Mint turns the caller's fresh two-sided deposit into liquidity shares.
func (p *Pair) Mint(to common.Address) (*uint256.Int, *Receipt, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	depS := p.deposit(p.cfg.Stock)
	depM := p.deposit(p.cfg.Money)
	sh, err := p.pool.Mint(to, depS, depM)
	if err != nil {
		return nil, nil, err
	}

	var evs []Event
	p.sync(&evs, nil, false)
	p.log.Infow("liquidity_minted", "to", to.Hex(), "shares", sh.Dec(),
		"stock_in", depS.Dec(), "money_in", depM.Dec())
	return sh, p.finish(evs), nil
}

// Burn redeems the owner's shares for both assets, paid to `to`.
func (p *Pair) Burn(owner, to common.Address, shares *uint256.Int) (stockOut, moneyOut *uint256.Int, rec *Receipt, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, nil, err
	}
	defer p.mu.Unlock()

	stockOut, moneyOut, err = p.pool.Burn(owner, shares)
	if err != nil {
		return nil, nil, nil, err
	}
	p.transferOut(p.cfg.Stock, to, stockOut)
	p.transferOut(p.cfg.Money, to, moneyOut)

	var evs []Event
	p.sync(&evs, nil, false)
	p.log.Infow("liquidity_burned", "owner", owner.Hex(), "shares", shares.Dec(),
		"stock_out", stockOut.Dec(), "money_out", moneyOut.Dec())
	return stockOut, moneyOut, p.finish(evs), nil
}

// Sync force-absorbs any unaccounted custody (donations, external
// transfers) into the reserves.
func (p *Pair) Sync() (*Receipt, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	var evs []Event
	p.sync(&evs, nil, false)
	return p.finish(evs), nil
}

// AddLimitOrder validates and executes a limit order: sweep the opposing
// book and the pool in favorable-price order, then rest any remainder.
// idHint requests an id on the order's side; if taken, the first free id
// above it is assigned instead (the receipt reports which). prevHints
// position the remainder in the chain.
func (p *Pair) AddLimitOrder(sender common.Address, isBuy bool, amount *uint256.Int,
	pr price.Price32, idHint book.ID, prevHints []book.ID) (*Receipt, error) {

	if err := pr.Validate(); err != nil {
		return nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrDepositNotEnough
	}
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	rat := pr.Rat(p.cfg.RefExp)

	// collateral check against the fresh deposit
	var avail *uint256.Int
	if isBuy {
		need := rat.MulCeil(amount)
		avail = p.deposit(p.cfg.Money)
		if avail.Lt(need) {
			return nil, ErrDepositNotEnough
		}
	} else {
		dep := p.deposit(p.cfg.Stock)
		if dep.Lt(amount) {
			return nil, ErrDepositNotEnough
		}
	}

	// the order's own side cannot change during the sweep, so the id and
	// hint validity are decided now, before any mutation
	id, err := p.book.NextFreeID(isBuy, idHint)
	if err != nil {
		return nil, err
	}
	if err := p.book.CheckInsert(isBuy, pr, prevHints); err != nil {
		return nil, err
	}

	s := p.newSweep(sender, isBuy, &rat, new(uint256.Int).Set(amount), avail)
	s.run()
	s.settlePool()

	// rest the remainder
	remained := new(uint256.Int)
	if !s.remainStock.IsZero() {
		r := new(uint256.Int).Set(s.remainStock)
		var bookedMoney *uint256.Int
		if isBuy {
			byMoney := rat.DivFloor(s.moneyBudget)
			if byMoney.Lt(r) {
				r.Set(byMoney)
			}
			bookedMoney = rat.MulCeil(r)
		} else {
			bookedMoney = new(uint256.Int)
		}
		if !r.IsZero() {
			o := &book.Order{
				ID:          id,
				IsBuy:       isBuy,
				Price:       pr,
				Amount:      new(uint256.Int).Set(r),
				Total:       new(uint256.Int).Set(amount),
				BookedMoney: bookedMoney,
				Owner:       sender,
			}
			if err := p.book.Insert(o, prevHints); err != nil {
				// pre-validated above; cannot fail
				panic(fmt.Sprintf("insert after check: %v", err))
			}
			if isBuy {
				p.bookedMoney.Add(p.bookedMoney, bookedMoney)
			} else {
				p.bookedStock.Add(p.bookedStock, r)
			}
			remained.Set(r)
		}
	}

	s.events = append(s.events, NewLimitOrderEvent{
		Owner:    sender,
		Total:    new(uint256.Int).Set(amount),
		Remained: new(uint256.Int).Set(remained),
		Price:    pr,
		OrderID:  id,
		IsBuy:    isBuy,
	})
	p.sync(&s.events, s.kBefore, s.poolTouched)

	p.log.Infow("limit_order", "sender", sender.Hex(), "is_buy", isBuy,
		"amount", amount.Dec(), "price", uint32(pr), "order_id", id,
		"remained", remained.Dec())

	rec := p.finish(s.events)
	rec.Remained = remained
	rec.OrderID = id
	return rec, nil
}

// AddMarketOrder spends amountIn of tokenIn (money buys, stock sells)
// against the better of book and pool with no price bound. An untradeable
// remainder is refunded, never an error: low liquidity is not a failure.
func (p *Pair) AddMarketOrder(sender common.Address, tokenIn token.Token, amountIn *uint256.Int) (*Receipt, error) {
	var isBuy bool
	switch {
	case tokenIn.Same(p.cfg.Money):
		isBuy = true
	case tokenIn.Same(p.cfg.Stock):
		isBuy = false
	default:
		return nil, ErrInvalidToken
	}
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrDepositNotEnough
	}
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	dep := p.deposit(tokenIn)
	if dep.Lt(amountIn) {
		return nil, ErrDepositNotEnough
	}

	var s *sweep
	if isBuy {
		// a buy's reach through the book is bounded by money alone
		unbounded := new(uint256.Int).SetAllOne()
		s = p.newSweep(sender, true, nil, unbounded, new(uint256.Int).Set(amountIn))
	} else {
		s = p.newSweep(sender, false, nil, new(uint256.Int).Set(amountIn), nil)
	}
	s.run()

	// whole unspent remainder goes through the pool, or back to the caller
	// when the pool is empty
	rest := s.inputLeft()
	if !rest.IsZero() {
		if !p.pool.ReserveStock.IsZero() && !p.pool.ReserveMoney.IsZero() {
			s.intoPool.Add(s.intoPool, rest)
			s.spendInput(rest)
		} else {
			p.transferOut(tokenIn, sender, rest)
			s.spendInput(rest)
		}
	}
	s.settlePool()

	s.events = append(s.events, NewMarketOrderEvent{
		Owner:  sender,
		Amount: new(uint256.Int).Set(amountIn),
		IsBuy:  isBuy,
	})
	p.sync(&s.events, s.kBefore, s.poolTouched)

	p.log.Infow("market_order", "sender", sender.Hex(), "is_buy", isBuy,
		"amount_in", amountIn.Dec())
	return p.finish(s.events), nil
}

// RemoveOrder unlinks the caller's resting order and refunds its reserved
// asset: remaining booked money for buys, remaining stock for sells.
func (p *Pair) RemoveOrder(sender common.Address, isBuy bool, id book.ID, prevHints []book.ID) (*Receipt, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	rec, err := p.removeLocked(sender, isBuy, id, prevHints)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Pair) removeLocked(sender common.Address, isBuy bool, id book.ID, prevHints []book.ID) (*Receipt, error) {
	o, ok := p.book.Get(isBuy, id)
	if !ok {
		return nil, ErrNoSuchOrder
	}
	if o.Owner != sender {
		return nil, ErrNotOwner
	}
	if _, err := p.book.Unlink(id, isBuy, prevHints); err != nil {
		return nil, err
	}

	var evs []Event
	p.refundOrder(o)
	evs = append(evs, RemoveOrderEvent{OrderID: id, IsBuy: isBuy})
	p.sync(&evs, nil, false)

	p.log.Infow("order_removed", "sender", sender.Hex(), "is_buy", isBuy, "order_id", id)
	return p.finish(evs), nil
}

func (p *Pair) refundOrder(o *book.Order) {
	if o.IsBuy {
		p.bookedMoney.Sub(p.bookedMoney, o.BookedMoney)
		p.transferOut(p.cfg.Money, o.Owner, o.BookedMoney)
	} else {
		p.bookedStock.Sub(p.bookedStock, o.Amount)
		p.transferOut(p.cfg.Stock, o.Owner, o.Amount)
	}
}

// RemoveEntry is one batch-removal target, packed externally as (id<<8)|side
// with side byte 1 for buy.
type RemoveEntry struct {
	ID    book.ID
	IsBuy bool
}

// ParseRemoveEntry decodes the packed (id<<8)|side form.
func ParseRemoveEntry(packed uint64) RemoveEntry {
	return RemoveEntry{ID: book.ID(packed >> 8), IsBuy: packed&0xff == 1}
}

// RemoveOrders is the atomic batch form of RemoveOrder: if any entry fails,
// nothing is removed. Entries share hint semantics with RemoveOrder; each
// entry's unlink walk starts at its side's head.
func (p *Pair) RemoveOrders(sender common.Address, entries []RemoveEntry) (*Receipt, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	// rehearse the whole batch on a clone so the live book stays intact
	// if any entry fails
	trial := p.book.Clone()
	for _, e := range entries {
		o, ok := trial.Get(e.IsBuy, e.ID)
		if !ok {
			return nil, ErrNoSuchOrder
		}
		if o.Owner != sender {
			return nil, ErrNotOwner
		}
		if _, err := trial.Unlink(e.ID, e.IsBuy, nil); err != nil {
			return nil, err
		}
	}

	var evs []Event
	for _, e := range entries {
		o, _ := p.book.Get(e.IsBuy, e.ID)
		if _, err := p.book.Unlink(e.ID, e.IsBuy, nil); err != nil {
			panic(fmt.Sprintf("unlink after rehearsal: %v", err))
		}
		p.refundOrder(o)
		evs = append(evs, RemoveOrderEvent{OrderID: e.ID, IsBuy: e.IsBuy})
	}
	p.sync(&evs, nil, false)

	p.log.Infow("orders_removed", "sender", sender.Hex(), "count", len(entries))
	return p.finish(evs), nil
}

// GetReserves returns both reserves and the best sell id.
func (p *Pair) GetReserves() (reserveStock, reserveMoney *uint256.Int, firstSellID book.ID) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.pool.ReserveStock),
		new(uint256.Int).Set(p.pool.ReserveMoney),
		p.book.FirstID(false)
}

// GetBooked returns both booked totals and the best buy id.
func (p *Pair) GetBooked() (bookedStock, bookedMoney *uint256.Int, firstBuyID book.ID) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.bookedStock),
		new(uint256.Int).Set(p.bookedMoney),
		p.book.FirstID(true)
}

// TotalShares returns the liquidity-share supply.
func (p *Pair) TotalShares() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.pool.TotalShares)
}

// PackedOrder is one read-only order-list record:
// [sender:160][price:32][amount:42][nextID:22], least-significant first.
type PackedOrder struct {
	Word  *uint256.Int
	Order book.Order
}

// GetOrderList walks one side from fromID (head if 0) for up to limit
// entries, returning packed records plus their decoded forms.
func (p *Pair) GetOrderList(isBuy bool, fromID book.ID, limit int) []PackedOrder {
	p.mu.RLock()
	defer p.mu.RUnlock()

	orders := p.book.Iterate(isBuy, fromID, limit)
	out := make([]PackedOrder, len(orders))
	for i, o := range orders {
		w := new(uint256.Int)
		packField(w, new(uint256.Int).SetBytes(o.Owner.Bytes()), 0, 160)
		packU64(w, uint64(o.Price), 160, 32)
		packField(w, o.Amount, 192, 42)
		packU64(w, uint64(o.Next), 234, 22)
		cp := *o
		cp.Amount = new(uint256.Int).Set(o.Amount)
		cp.Total = new(uint256.Int).Set(o.Total)
		cp.BookedMoney = new(uint256.Int).Set(o.BookedMoney)
		out[i] = PackedOrder{Word: w, Order: cp}
	}
	return out
}
