package book

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/poolbook/pkg/engine/price"
)

var owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")

// mk builds an order at an integer price: sig = v*1e5, exp=18 decodes to v
// (v in [100, 999]).
func mk(id ID, isBuy bool, v uint32, amount uint64) *Order {
	return &Order{
		ID:          id,
		IsBuy:       isBuy,
		Price:       price.Encode(v*100_000, 18),
		Amount:      uint256.NewInt(amount),
		Total:       uint256.NewInt(amount),
		BookedMoney: new(uint256.Int),
		Owner:       owner,
		Next:        0,
	}
}

func chain(t *testing.T, b *Book, isBuy bool) []ID {
	t.Helper()
	var ids []ID
	for _, o := range b.Iterate(isBuy, 0, 1000) {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestInsertKeepsSellAscendingBuyDescending(t *testing.T) {
	b := New(price.DefaultRefExp, 0)

	// sells out of order
	for _, o := range []*Order{
		mk(1, false, 105, 10),
		mk(2, false, 100, 10),
		mk(3, false, 103, 10),
	} {
		if err := b.Insert(o, nil); err != nil {
			t.Fatalf("insert sell %d: %v", o.ID, err)
		}
	}
	got := chain(t, b, false)
	want := []ID{2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sell chain %v, want %v", got, want)
		}
	}

	// buys out of order
	for _, o := range []*Order{
		mk(4, true, 101, 10),
		mk(5, true, 104, 10),
		mk(6, true, 102, 10),
	} {
		if err := b.Insert(o, nil); err != nil {
			t.Fatalf("insert buy %d: %v", o.ID, err)
		}
	}
	got = chain(t, b, true)
	want = []ID{5, 6, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buy chain %v, want %v", got, want)
		}
	}
}

func TestInsertTieGoesAfterEqualPrice(t *testing.T) {
	b := New(price.DefaultRefExp, 0)
	if err := b.Insert(mk(1, false, 100, 10), nil); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(mk(2, false, 100, 10), nil); err != nil {
		t.Fatal(err)
	}
	got := chain(t, b, false)
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("tie order %v, want [1 2]", got)
	}
}

func TestInsertWithHints(t *testing.T) {
	b := New(price.DefaultRefExp, 0)
	b.Insert(mk(1, false, 100, 10), nil)
	b.Insert(mk(2, false, 104, 10), nil)
	b.Insert(mk(3, false, 108, 10), nil)

	// correct hint: belongs after id 2
	if err := b.Insert(mk(4, false, 106, 10), []ID{2}); err != nil {
		t.Fatalf("insert with good hint: %v", err)
	}
	// stale hint past the insertion point falls back to head walk
	if err := b.Insert(mk(5, false, 101, 10), []ID{3}); err != nil {
		t.Fatalf("insert with stale hint: %v", err)
	}
	got := chain(t, b, false)
	want := []ID{1, 5, 2, 4, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chain %v, want %v", got, want)
		}
	}
}

func TestInsertResolvesIDHint(t *testing.T) {
	b := New(price.DefaultRefExp, 0)
	if err := b.Insert(mk(1, false, 100, 10), nil); err != nil {
		t.Fatal(err)
	}
	// taken hint moves up to the next free id
	o := mk(1, false, 101, 10)
	if err := b.Insert(o, nil); err != nil {
		t.Fatal(err)
	}
	if o.ID != 2 {
		t.Errorf("taken hint 1 assigned %d, want 2", o.ID)
	}
	o = mk(1, false, 102, 10)
	if err := b.Insert(o, nil); err != nil {
		t.Fatal(err)
	}
	if o.ID != 3 {
		t.Errorf("taken hint 1 assigned %d, want 3", o.ID)
	}
	// hint 0 means "any": starts the scan at 1
	o = mk(0, false, 103, 10)
	if err := b.Insert(o, nil); err != nil {
		t.Fatal(err)
	}
	if o.ID != 4 {
		t.Errorf("zero hint assigned %d, want 4", o.ID)
	}
}

func TestIDsAreScopedPerSide(t *testing.T) {
	b := New(price.DefaultRefExp, 0)
	if err := b.Insert(mk(1, false, 105, 10), nil); err != nil {
		t.Fatal(err)
	}
	// same id on the other side is a distinct order
	o := mk(1, true, 100, 20)
	if err := b.Insert(o, nil); err != nil {
		t.Fatal(err)
	}
	if o.ID != 1 {
		t.Fatalf("buy id %d, want 1", o.ID)
	}
	s, ok := b.Get(false, 1)
	if !ok || s.IsBuy {
		t.Fatal("sell 1 missing")
	}
	bo, ok := b.Get(true, 1)
	if !ok || !bo.IsBuy || bo.Amount.Uint64() != 20 {
		t.Fatal("buy 1 missing")
	}
	if b.Len() != 2 {
		t.Fatalf("len %d, want 2", b.Len())
	}
}

func TestNextFreeIDScanIsBounded(t *testing.T) {
	b := New(price.DefaultRefExp, 3)
	for i := ID(1); i <= 5; i++ {
		if err := b.Insert(mk(i, false, 100+uint32(i), 10), []ID{i - 1}); err != nil {
			t.Fatalf("seed insert %d: %v", i, err)
		}
	}
	// five taken ids exceed the 3-hop scan budget
	if _, err := b.NextFreeID(false, 1); err != ErrReachEnd {
		t.Errorf("exhausted scan: got %v, want ErrReachEnd", err)
	}
	if id, err := b.NextFreeID(false, 4); err != nil || id != 6 {
		t.Errorf("scan from 4: got %d, %v, want 6", id, err)
	}
	if _, err := b.NextFreeID(false, MaxID+1); err != ErrReachEnd {
		t.Errorf("hint past MaxID: got %v, want ErrReachEnd", err)
	}
}

func TestInsertHopBudget(t *testing.T) {
	b := New(price.DefaultRefExp, 3)
	for i := ID(1); i <= 6; i++ {
		if err := b.Insert(mk(i, false, 100+uint32(i), 10), []ID{i - 1}); err != nil {
			t.Fatalf("seed insert %d: %v", i, err)
		}
	}
	// belongs at the tail but no usable hint: walk exceeds 3 hops
	if err := b.Insert(mk(7, false, 120, 10), nil); err != ErrReachEnd {
		t.Errorf("over-budget insert: got %v, want ErrReachEnd", err)
	}
	// with a near-tail hint it fits the budget
	if err := b.Insert(mk(7, false, 120, 10), []ID{6}); err != nil {
		t.Errorf("hinted insert: %v", err)
	}
}

func TestUnlink(t *testing.T) {
	b := New(price.DefaultRefExp, 0)
	for i := ID(1); i <= 4; i++ {
		b.Insert(mk(i, false, 100+uint32(i), 10), nil)
	}

	// head removal needs no hint
	if _, err := b.Unlink(1, false, nil); err != nil {
		t.Fatalf("unlink head: %v", err)
	}
	// middle removal with predecessor hint
	if _, err := b.Unlink(3, false, []ID{2}); err != nil {
		t.Fatalf("unlink middle: %v", err)
	}
	got := chain(t, b, false)
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("chain after unlinks %v, want [2 4]", got)
	}

	if _, err := b.Unlink(3, false, nil); err != ErrNoSuchOrder {
		t.Errorf("unlink dead id: got %v, want ErrNoSuchOrder", err)
	}
	if _, err := b.Unlink(2, false, []ID{4}); err != ErrReachEnd {
		t.Errorf("hint after target: got %v, want ErrReachEnd", err)
	}
	// wrong side lookup
	if _, err := b.Unlink(2, true, nil); err != ErrNoSuchOrder {
		t.Errorf("wrong side: got %v, want ErrNoSuchOrder", err)
	}
}

func TestIterateFromAndLimit(t *testing.T) {
	b := New(price.DefaultRefExp, 0)
	for i := ID(1); i <= 5; i++ {
		b.Insert(mk(i, false, 100+uint32(i), 10), nil)
	}
	part := b.Iterate(false, 3, 2)
	if len(part) != 2 || part[0].ID != 3 || part[1].ID != 4 {
		t.Fatalf("iterate(from=3,limit=2) wrong window")
	}
	all := b.Iterate(false, 0, 100)
	if len(all) != 5 {
		t.Fatalf("iterate full length %d, want 5", len(all))
	}
}

func TestPopFirst(t *testing.T) {
	b := New(price.DefaultRefExp, 0)
	b.Insert(mk(1, true, 105, 10), nil)
	b.Insert(mk(2, true, 103, 10), nil)

	o := b.PopFirst(true)
	if o == nil || o.ID != 1 {
		t.Fatalf("pop head: got %v", o)
	}
	if b.FirstID(true) != 2 {
		t.Fatalf("head after pop = %d, want 2", b.FirstID(true))
	}
	b.PopFirst(true)
	if b.PopFirst(true) != nil {
		t.Fatal("pop on empty side should be nil")
	}
}
