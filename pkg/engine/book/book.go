// Package book implements the resting-order store: one singly linked,
// price-sorted chain per side over a per-side arena of id-keyed order
// records. Links are ids, never pointers, so the whole structure snapshots
// and restores byte-exactly. List mutations are hint-verified and
// hop-bounded; a stale hint is a caller-retryable error, never a full scan.
package book

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/poolbook/pkg/engine/price"
)

var (
	ErrNoSuchOrder = errors.New("NO_SUCH_ORDER")
	ErrReachEnd    = errors.New("REACH_END")
)

// ID is a 24-bit order id. 0 is the list sentinel and never a live order.
// Ids are scoped per side: buy 1 and sell 1 are distinct orders.
type ID uint32

const MaxID ID = 1<<24 - 1

// DefaultHopLimit bounds every hint-relative list walk, including the
// free-id scan in NextFreeID.
const DefaultHopLimit = 100

// Order is one resting limit order. Amount is the remaining stock quantity
// on both sides. BookedMoney tracks a buy order's remaining reserved money
// so partial fills and removals release exactly what was locked.
type Order struct {
	ID          ID
	IsBuy       bool
	Price       price.Price32
	Amount      *uint256.Int
	Total       *uint256.Int
	BookedMoney *uint256.Int
	Owner       common.Address
	Next        ID
}

// Book holds both sides of the pair's order book.
type Book struct {
	refExp    int
	hopLimit  int
	buys      map[ID]*Order
	sells     map[ID]*Order
	firstBuy  ID
	firstSell ID
}

func New(refExp, hopLimit int) *Book {
	if hopLimit <= 0 {
		hopLimit = DefaultHopLimit
	}
	return &Book{
		refExp:   refExp,
		hopLimit: hopLimit,
		buys:     make(map[ID]*Order),
		sells:    make(map[ID]*Order),
	}
}

func (b *Book) side(isBuy bool) map[ID]*Order {
	if isBuy {
		return b.buys
	}
	return b.sells
}

// FirstID returns the head id of one side (0 if empty).
func (b *Book) FirstID(isBuy bool) ID {
	if isBuy {
		return b.firstBuy
	}
	return b.firstSell
}

// First returns the best resting order of one side, nil if the side is empty.
func (b *Book) First(isBuy bool) *Order {
	return b.side(isBuy)[b.FirstID(isBuy)]
}

// Get looks up a live order on one side by id.
func (b *Book) Get(isBuy bool, id ID) (*Order, bool) {
	o, ok := b.side(isBuy)[id]
	return o, ok
}

// Len returns the number of live orders across both sides.
func (b *Book) Len() int { return len(b.buys) + len(b.sells) }

// NextFreeID resolves an id hint to the first unused id on one side,
// scanning upward from the hint (1 when the hint is 0). The scan shares
// the hop budget; exhausting it, or running past MaxID, fails with
// REACH_END.
func (b *Book) NextFreeID(isBuy bool, hint ID) (ID, error) {
	id := hint
	if id == 0 {
		id = 1
	}
	side := b.side(isBuy)
	for i := 0; i <= b.hopLimit; i++ {
		if id > MaxID {
			return 0, ErrReachEnd
		}
		if _, used := side[id]; !used {
			return id, nil
		}
		id++
	}
	return 0, ErrReachEnd
}

// belongsBefore reports whether a new order at pr must be linked before
// existing in the isBuy chain: strictly better price only, so price ties
// keep insertion order (earlier id first).
func (b *Book) belongsBefore(isBuy bool, pr price.Price32, existing *Order) bool {
	c := price.Cmp(pr, existing.Price, b.refExp)
	if isBuy {
		return c > 0
	}
	return c < 0
}

// findPrev locates the predecessor after which an order at pr belongs
// (nil means insert at the head). hints name candidate predecessors; the
// walk starts at the first usable hint (or the head) and advances at most
// the hop budget before failing with REACH_END.
func (b *Book) findPrev(isBuy bool, pr price.Price32, hints []ID) (*Order, error) {
	side := b.side(isBuy)
	var prev *Order
	for _, h := range hints {
		cand, ok := side[h]
		if !ok {
			continue
		}
		if b.belongsBefore(isBuy, pr, cand) {
			// hint sits past the insertion point; useless
			continue
		}
		prev = cand
		break
	}

	var cur *Order
	if prev != nil {
		cur = side[prev.Next]
	} else {
		cur = b.First(isBuy)
	}

	hops := 0
	for cur != nil && !b.belongsBefore(isBuy, pr, cur) {
		prev, cur = cur, side[cur.Next]
		hops++
		if hops > b.hopLimit {
			return nil, ErrReachEnd
		}
	}
	return prev, nil
}

// CheckInsert verifies that an order at pr could be inserted into the isBuy
// chain with these hints, without mutating anything. Callers that must stay
// all-or-nothing run this before touching other state.
func (b *Book) CheckInsert(isBuy bool, pr price.Price32, hints []ID) error {
	_, err := b.findPrev(isBuy, pr, hints)
	return err
}

// Insert links o into its side's sorted chain. o.ID is an id hint: the
// order is assigned the first free id at or above it (NextFreeID), so a
// taken hint never rejects the order. Position hints as in findPrev.
func (b *Book) Insert(o *Order, hints []ID) error {
	id, err := b.NextFreeID(o.IsBuy, o.ID)
	if err != nil {
		return err
	}
	prev, err := b.findPrev(o.IsBuy, o.Price, hints)
	if err != nil {
		return err
	}

	o.ID = id
	if prev == nil {
		o.Next = b.FirstID(o.IsBuy)
		b.setFirst(o.IsBuy, o.ID)
	} else {
		o.Next = prev.Next
		prev.Next = o.ID
	}
	b.side(o.IsBuy)[o.ID] = o
	return nil
}

// PopFirst removes and returns the head order of one side. Used by the
// matching sweep when the best order fills completely.
func (b *Book) PopFirst(isBuy bool) *Order {
	o := b.First(isBuy)
	if o == nil {
		return nil
	}
	b.setFirst(isBuy, o.Next)
	delete(b.side(isBuy), o.ID)
	o.Next = 0
	return o
}

// Unlink removes order id from the isBuy chain and returns it. When a usable
// hint is given the walk to the predecessor starts there and is hop bounded;
// a hint that does not actually precede id runs off the chain and fails with
// REACH_END, even when id sits at the head. Only a hintless call may take
// the head shortcut.
func (b *Book) Unlink(id ID, isBuy bool, hints []ID) (*Order, error) {
	side := b.side(isBuy)
	o, ok := side[id]
	if !ok {
		return nil, ErrNoSuchOrder
	}

	var prev *Order
	for _, h := range hints {
		cand, ok := side[h]
		if !ok || cand.ID == id {
			continue
		}
		prev = cand
		break
	}

	if prev == nil {
		if b.FirstID(isBuy) == id {
			b.setFirst(isBuy, o.Next)
			delete(side, id)
			o.Next = 0
			return o, nil
		}
		prev = b.First(isBuy)
	}

	hops := 0
	for prev != nil && prev.Next != id {
		prev = side[prev.Next]
		hops++
		if hops > b.hopLimit {
			return nil, ErrReachEnd
		}
	}
	if prev == nil {
		return nil, ErrReachEnd
	}

	prev.Next = o.Next
	delete(side, id)
	o.Next = 0
	return o, nil
}

// Iterate walks one side from fromID (head if 0) for up to limit orders.
// Read-only: returned orders must not be mutated by callers.
func (b *Book) Iterate(isBuy bool, fromID ID, limit int) []*Order {
	side := b.side(isBuy)
	var out []*Order
	id := fromID
	if id == 0 {
		id = b.FirstID(isBuy)
	}
	for id != 0 && len(out) < limit {
		o, ok := side[id]
		if !ok {
			break
		}
		out = append(out, o)
		id = o.Next
	}
	return out
}

// Orders returns every live order; order of iteration is unspecified.
// Used only for snapshotting.
func (b *Book) Orders() []*Order {
	out := make([]*Order, 0, len(b.buys)+len(b.sells))
	for _, o := range b.buys {
		out = append(out, o)
	}
	for _, o := range b.sells {
		out = append(out, o)
	}
	return out
}

// Clone deep-copies the book. Batch removals validate against a clone first
// so a failing entry leaves the live book untouched.
func (b *Book) Clone() *Book {
	c := New(b.refExp, b.hopLimit)
	c.firstBuy = b.firstBuy
	c.firstSell = b.firstSell
	for _, src := range []map[ID]*Order{b.buys, b.sells} {
		for id, o := range src {
			cp := *o
			cp.Amount = new(uint256.Int).Set(o.Amount)
			cp.Total = new(uint256.Int).Set(o.Total)
			cp.BookedMoney = new(uint256.Int).Set(o.BookedMoney)
			c.side(o.IsBuy)[id] = &cp
		}
	}
	return c
}

// Restore rebuilds the arenas from a snapshot. Chains are trusted as saved.
func (b *Book) Restore(orders []*Order, firstBuy, firstSell ID) {
	b.buys = make(map[ID]*Order)
	b.sells = make(map[ID]*Order)
	for _, o := range orders {
		b.side(o.IsBuy)[o.ID] = o
	}
	b.firstBuy = firstBuy
	b.firstSell = firstSell
}

func (b *Book) setFirst(isBuy bool, id ID) {
	if isBuy {
		b.firstBuy = id
	} else {
		b.firstSell = id
	}
}
