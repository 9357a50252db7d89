// Package token provides the two-variant asset capability the pair trades:
// the chain-native asset or a fungible contract-style token, behind one
// transfer interface, plus the in-process balance ledger the engine uses as
// its custody view.
package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind selects the asset variant. Fixed at pair creation, immutable after.
type Kind uint8

const (
	Native Kind = iota
	Fungible
)

// Token identifies one asset. Native tokens use the zero address.
type Token struct {
	Kind   Kind
	Addr   common.Address
	Symbol string
}

func NewNative(symbol string) Token {
	return Token{Kind: Native, Symbol: symbol}
}

func NewFungible(addr common.Address, symbol string) Token {
	return Token{Kind: Fungible, Addr: addr, Symbol: symbol}
}

func (t Token) String() string { return t.Symbol }

// Same reports whether two tokens are the same asset.
func (t Token) Same(o Token) bool {
	return t.Kind == o.Kind && t.Addr == o.Addr
}

type balanceKey struct {
	token Token
	owner common.Address
}

// Ledger is the balance bookkeeping collaborator: who holds how much of each
// asset. The engine only reads the pair's custody balance and moves matched
// proceeds out; deposits are plain transfers into the pair address performed
// by the caller before the engine call.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]*uint256.Int
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[balanceKey]*uint256.Int)}
}

// BalanceOf returns owner's balance of t (a copy).
func (l *Ledger) BalanceOf(t Token, owner common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[balanceKey{t, owner}]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// Issue credits freshly created units to owner. Used by genesis setup,
// faucets and tests; real deployments would bridge deposits in here.
func (l *Ledger) Issue(t Token, owner common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(t, owner, amount)
}

// Transfer moves amount of t from one owner to another.
func (l *Ledger) Transfer(t Token, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	k := balanceKey{t, from}
	b, ok := l.balances[k]
	if !ok || b.Lt(amount) {
		return fmt.Errorf("transfer %s: balance %s below %s", t.Symbol, balStr(b), amount.Dec())
	}
	b.Sub(b, amount)
	l.credit(t, to, amount)
	return nil
}

func (l *Ledger) credit(t Token, owner common.Address, amount *uint256.Int) {
	k := balanceKey{t, owner}
	if b, ok := l.balances[k]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[k] = new(uint256.Int).Set(amount)
}

// BalanceRecord is one (token, owner, amount) row of a ledger snapshot.
type BalanceRecord struct {
	Token  Token
	Owner  common.Address
	Amount *uint256.Int
}

// Snapshot copies every nonzero balance.
func (l *Ledger) Snapshot() []BalanceRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	recs := make([]BalanceRecord, 0, len(l.balances))
	for k, b := range l.balances {
		if b.IsZero() {
			continue
		}
		recs = append(recs, BalanceRecord{
			Token:  k.token,
			Owner:  k.owner,
			Amount: new(uint256.Int).Set(b),
		})
	}
	return recs
}

// Restore replaces the ledger contents with a snapshot.
func (l *Ledger) Restore(recs []BalanceRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[balanceKey]*uint256.Int, len(recs))
	for _, r := range recs {
		l.balances[balanceKey{r.Token, r.Owner}] = new(uint256.Int).Set(r.Amount)
	}
}

func balStr(b *uint256.Int) string {
	if b == nil {
		return "0"
	}
	return b.Dec()
}
