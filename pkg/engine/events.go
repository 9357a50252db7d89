package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/poolbook/pkg/engine/book"
	"github.com/uhyunpark/poolbook/pkg/engine/price"
)

// Event is one fact the engine emits for external observation. Payload is
// the fact packed into one 256-bit word, least-significant field first;
// the typed fields carry the same data for direct consumption.
type Event interface {
	Kind() string
	Payload() *uint256.Int
}

// packField ors v's low width bits into z at the given bit offset.
func packField(z *uint256.Int, v *uint256.Int, offset, width uint) {
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), width)
	mask.SubUint64(mask, 1)
	f := new(uint256.Int).And(v, mask)
	z.Or(z, f.Lsh(f, offset))
}

func packU64(z *uint256.Int, v uint64, offset, width uint) {
	packField(z, uint256.NewInt(v), offset, width)
}

func boolByte(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// NewLimitOrderEvent records the acceptance of a limit order:
// [addrLow:64][totalStock:64][remainedStock:64][price:32][orderID:24][isBuy:8].
type NewLimitOrderEvent struct {
	Owner    common.Address
	Total    *uint256.Int
	Remained *uint256.Int
	Price    price.Price32
	OrderID  book.ID
	IsBuy    bool
}

func (e NewLimitOrderEvent) Kind() string { return "NewLimitOrder" }

func (e NewLimitOrderEvent) Payload() *uint256.Int {
	z := new(uint256.Int)
	packField(z, new(uint256.Int).SetBytes(e.Owner.Bytes()), 0, 64)
	packField(z, e.Total, 64, 64)
	packField(z, e.Remained, 128, 64)
	packU64(z, uint64(e.Price), 192, 32)
	packU64(z, uint64(e.OrderID), 224, 24)
	packU64(z, boolByte(e.IsBuy), 248, 8)
	return z
}

// NewMarketOrderEvent records a market order: [addrLow:136][amount:112][isBuy:8].
type NewMarketOrderEvent struct {
	Owner  common.Address
	Amount *uint256.Int
	IsBuy  bool
}

func (e NewMarketOrderEvent) Kind() string { return "NewMarketOrder" }

func (e NewMarketOrderEvent) Payload() *uint256.Int {
	z := new(uint256.Int)
	packField(z, new(uint256.Int).SetBytes(e.Owner.Bytes()), 0, 136)
	packField(z, e.Amount, 136, 112)
	packU64(z, boolByte(e.IsBuy), 248, 8)
	return z
}

// OrderChangedEvent reflects a fill against a resting order:
// [price:32][orderID:24][isBuy:8]; Remained is the maker's post-fill stock.
type OrderChangedEvent struct {
	Price    price.Price32
	OrderID  book.ID
	IsBuy    bool
	Remained *uint256.Int
}

func (e OrderChangedEvent) Kind() string { return "OrderChanged" }

func (e OrderChangedEvent) Payload() *uint256.Int {
	z := new(uint256.Int)
	packU64(z, uint64(e.Price), 0, 32)
	packU64(z, uint64(e.OrderID), 32, 24)
	packU64(z, boolByte(e.IsBuy), 56, 8)
	return z
}

// DealWithPoolEvent records the call's single pool swap:
// [amountIn:112][amountOut:112][isBuy:8]. AmountOut is gross, before the
// output-leg fee retained by the pool.
type DealWithPoolEvent struct {
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	IsBuy     bool
}

func (e DealWithPoolEvent) Kind() string { return "DealWithPool" }

func (e DealWithPoolEvent) Payload() *uint256.Int {
	z := new(uint256.Int)
	packField(z, e.AmountIn, 0, 112)
	packField(z, e.AmountOut, 112, 112)
	packU64(z, boolByte(e.IsBuy), 224, 8)
	return z
}

// RemoveOrderEvent records an explicit removal: [orderID:24][isBuy:8].
type RemoveOrderEvent struct {
	OrderID book.ID
	IsBuy   bool
}

func (e RemoveOrderEvent) Kind() string { return "RemoveOrder" }

func (e RemoveOrderEvent) Payload() *uint256.Int {
	z := new(uint256.Int)
	packU64(z, uint64(e.OrderID), 0, 24)
	packU64(z, boolByte(e.IsBuy), 24, 8)
	return z
}

// SyncEvent is the post-call reserve snapshot: [stock:112][money:112].
type SyncEvent struct {
	ReserveStock *uint256.Int
	ReserveMoney *uint256.Int
}

func (e SyncEvent) Kind() string { return "Sync" }

func (e SyncEvent) Payload() *uint256.Int {
	z := new(uint256.Int)
	packField(z, e.ReserveStock, 0, 112)
	packField(z, e.ReserveMoney, 112, 112)
	return z
}
